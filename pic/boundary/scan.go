package boundary

import (
	"fmt"
	"math/rand"

	"github.com/pthm-cable/picx/pic/field"
	"github.com/pthm-cable/picx/pic/grid"
	"github.com/pthm-cable/picx/pic/particle"
)

// faceRule is the per-face trigger condition and crossing-axis reflection
// used by Scan, in the fixed dispatch order -x,-y,-z,+x,+y,+z (spec.md
// §4.2's table).
type faceRule struct {
	trigger func(p *particle.Particle) bool
	reflect func(p particle.Particle) particle.Particle
}

var faceRules = [grid.NumFaces]faceRule{
	grid.FaceNegX: {
		trigger: func(p *particle.Particle) bool { return p.DX == -1 && p.UX < 0 },
		reflect: func(p particle.Particle) particle.Particle { p.DX = -p.DX; return p },
	},
	grid.FaceNegY: {
		trigger: func(p *particle.Particle) bool { return p.DY == -1 && p.UY < 0 },
		reflect: func(p particle.Particle) particle.Particle { p.DY = -p.DY; return p },
	},
	grid.FaceNegZ: {
		trigger: func(p *particle.Particle) bool { return p.DZ == -1 && p.UZ < 0 },
		reflect: func(p particle.Particle) particle.Particle { p.DZ = -p.DZ; return p },
	},
	grid.FacePosX: {
		trigger: func(p *particle.Particle) bool { return p.DX == 1 && p.UX > 0 },
		reflect: func(p particle.Particle) particle.Particle { p.DX = -p.DX; return p },
	},
	grid.FacePosY: {
		trigger: func(p *particle.Particle) bool { return p.DY == 1 && p.UY > 0 },
		reflect: func(p particle.Particle) particle.Particle { p.DY = -p.DY; return p },
	},
	grid.FacePosZ: {
		trigger: func(p *particle.Particle) bool { return p.DZ == 1 && p.UZ > 0 },
		reflect: func(p particle.Particle) particle.Particle { p.DZ = -p.DZ; return p },
	},
}

// triggerFace probes the six faces in fixed order and returns the first one
// whose condition fires.
func triggerFace(p *particle.Particle) (int, bool) {
	for f := 0; f < grid.NumFaces; f++ {
		if faceRules[f].trigger(p) {
			return f, true
		}
	}
	return 0, false
}

// Result is what one species' Mover Scan produced: per-face outbound
// injectors plus the local custom-handler overflow, and a tally of the
// charge this rank deposited directly (absorbed or unclassified).
type Result struct {
	SendBuf          [grid.NumFaces][]particle.Injector
	Local            []particle.Injector
	DepositedCharge  float64
	UnclassifiedHits int
}

// Warnf is the soft-error sink for the unclassified-interaction case
// (spec.md §7); nil is a valid no-op logger.
type Warnf func(format string, args ...any)

// Scan walks sp's mover list from Nm-1 down to 0, classifying and
// dispatching each flagged particle, and leaves sp.Np/sp.Nm updated in
// place (sp.Nm is zero on every nil-error return — invariant I3; an error
// return leaves sp.Nm as it was). v.Validate()
// should be checked once at topology-build time, not per scan.
//
// cm is the local custom-handler overflow buffer; Scan resets its logical
// length on entry and reuses its capacity across calls (spec.md §4.2's
// preamble: "ensure... the local custom-handler overflow buffer cmlist
// holds at least nm_total entries, reallocating if short; never
// shrinking"). The caller owns cm's lifetime — typically one Cmlist per
// exchange subsystem, shared across every species and every step. A nil cm
// is replaced with a fresh one scoped to this call only.
func Scan(sp *particle.Species, v *grid.View, fld *field.Field, handlers Handlers, accum Accumulator, rng *rand.Rand, cm *Cmlist, warn Warnf) (Result, error) {
	var res Result

	if cm == nil {
		cm = &Cmlist{}
	}
	cm.Reset()
	cm.EnsureCapacity(func(n int) int { return n + n/4 + n/16 + 1 }, sp.Nm)

	for k := sp.Nm - 1; k >= 0; k-- {
		pm := sp.PM[k]
		if int(pm.I) >= sp.Np {
			return res, fmt.Errorf("boundary: mover %d references particle index %d, np=%d", k, pm.I, sp.Np)
		}
		p := sp.P[pm.I]

		face, ok := triggerFace(&p)
		if !ok {
			if warn != nil {
				warn("species %q: mover at particle index %d triggered no face condition, absorbing", sp.Name, pm.I)
			}
			field.Deposit(fld, p, v)
			res.DepositedCharge += float64(p.Q)
			res.UnclassifiedHits++
			sp.SwapRemove(int(pm.I))
			continue
		}

		nn := v.Neighbor[6*int(p.I)+face]
		d := v.Decode(nn)

		switch d.Kind {
		case grid.KindAbsorb:
			field.Deposit(fld, p, v)
			res.DepositedCharge += float64(p.Q)

		case grid.KindInternal:
			if warn != nil {
				warn("species %q: mover at particle index %d crossed face %d into an internal neighbor, absorbing", sp.Name, pm.I, face)
			}
			field.Deposit(fld, p, v)
			res.DepositedCharge += float64(p.Q)

		case grid.KindRemote:
			reflected := faceRules[face].reflect(p)
			inj := particle.NewInjector(reflected, int32(d.DestIndex), pm, sp.ID)
			res.SendBuf[face] = append(res.SendBuf[face], inj)

		case grid.KindCustom:
			if d.HandlerSlot >= len(handlers) || handlers[d.HandlerSlot] == nil {
				return res, fmt.Errorf("boundary: face %d decodes to unregistered custom handler slot %d", face, d.HandlerSlot)
			}
			before := cm.N
			ctx := &HandlerContext{
				P: &p, PM: &pm,
				Field: fld, Accum: accum, Grid: v, Species: sp,
				CM: cm, RNG: rng, Face: face,
			}
			handlers[d.HandlerSlot](ctx)
			if cm.N > before {
				res.Local = append(res.Local, cm.Buf[before:cm.N]...)
			}

		default:
			if warn != nil {
				warn("species %q: mover at particle index %d decoded to an unknown neighbor code, absorbing", sp.Name, pm.I)
			}
			field.Deposit(fld, p, v)
			res.DepositedCharge += float64(p.Q)
		}

		sp.SwapRemove(int(pm.I))
	}

	sp.Nm = 0
	return res, nil
}
