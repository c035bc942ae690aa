package exchange

import (
	"fmt"

	"github.com/pthm-cable/picx/pic/particle"
)

// NumSources is the fixed fan-in width of the Reinjector: the six remote
// exchange faces plus the one local custom-handler overflow list (spec.md
// §4.4, boundary_p.c's seven-source count pass over n_inj[sp_id]).
const NumSources = 7

// MoveFunc advances one freshly reinjected particle's residual displacement
// from the face into the cell interior, standing in for the out-of-scope
// move_p pusher step (spec.md §1 lists the pusher as an injected
// collaborator, never owned by this package). sp.P[slot] is the particle;
// sp.PM[sp.Nm] already holds its drafted mover (index and residual
// displacement) when MoveFunc is called. MoveFunc returns 0 or 1 — whether
// that mover survived and should be retained — which the caller adds
// directly to sp.Nm, mirroring the original's "sp->nm += move_p(...)".
type MoveFunc func(sp *particle.Species, slot int) int

// Reinject replays every injector in sources into its destination species'
// particle and mover storage. For each species it first counts how many
// injectors across the NumSources buffers target that species, grows
// capacity once via
// growTo (the geometric-growth rule, spec.md §4.4), then replays each
// source's matching injectors in reverse order — mirroring the original's
// "pi += n-1; for(;n;pi--,n--)" replay discipline, which the Mover Scan's
// own reverse-walk convention also follows.
func Reinject(table *particle.Table, sources [NumSources][]particle.Injector, growTo func(int) int, move MoveFunc) error {
	for _, src := range sources {
		for _, inj := range src {
			if _, err := table.Lookup(inj.SpID); err != nil {
				return fmt.Errorf("exchange: %w", err)
			}
		}
	}

	for _, sp := range table.All() {
		n := 0
		for _, src := range sources {
			for _, inj := range src {
				if inj.SpID == sp.ID {
					n++
				}
			}
		}
		if n == 0 {
			continue
		}

		sp.EnsureCapacity(growTo, n, n)

		for _, src := range sources {
			for i := len(src) - 1; i >= 0; i-- {
				inj := src[i]
				if inj.SpID != sp.ID {
					continue
				}
				if err := reinjectOne(sp, inj, move); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func reinjectOne(sp *particle.Species, inj particle.Injector, move MoveFunc) error {
	if sp.Np >= sp.MaxNp() {
		return fmt.Errorf("exchange: species %q out of particle capacity reinjecting sp_id %d", sp.Name, sp.ID)
	}
	if sp.Nm >= sp.MaxNm() {
		return fmt.Errorf("exchange: species %q out of mover capacity reinjecting sp_id %d", sp.Name, sp.ID)
	}

	slot := sp.Np
	sp.P[slot] = inj.ToParticle()
	sp.Np++

	mv := inj.ToMoverDraft()
	mv.I = int32(slot)
	sp.PM[sp.Nm] = mv

	sp.Nm += move(sp, slot)
	return nil
}
