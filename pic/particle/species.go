package particle

import "fmt"

// Species owns one species' dense, swap-compacted particle and mover
// arrays. P and PM are pre-allocated to their current capacity (MaxNp and
// MaxNm); only the [0, Np) and [0, Nm) prefixes are live. This mirrors the
// teacher's effect-particle system's own "alive, backfill, truncate" idiom,
// generalized to the species' full capacity-before-write discipline
// (invariant I4).
type Species struct {
	Name string
	ID   int32

	P  []Particle
	PM []Mover

	Np int
	Nm int
}

// NewSpecies allocates a species with the given initial capacities.
func NewSpecies(name string, id int32, maxNp, maxNm int) *Species {
	return &Species{
		Name: name,
		ID:   id,
		P:    make([]Particle, maxNp),
		PM:   make([]Mover, maxNm),
	}
}

// MaxNp returns the current particle-array capacity.
func (s *Species) MaxNp() int { return len(s.P) }

// MaxNm returns the current mover-array capacity.
func (s *Species) MaxNm() int { return len(s.PM) }

// SwapRemove removes the particle at index i by overwriting it with the
// last live particle and shrinking Np — the hole-backfill step invariant
// M1 depends on (spec.md §3).
func (s *Species) SwapRemove(i int) {
	s.Np--
	s.P[i] = s.P[s.Np]
}

// GrowParticles grows the particle array's capacity to at least newMax,
// copying the live prefix. It never shrinks.
func (s *Species) GrowParticles(newMax int) {
	if newMax <= len(s.P) {
		return
	}
	grown := make([]Particle, newMax)
	copy(grown, s.P[:s.Np])
	s.P = grown
}

// GrowMovers grows the mover array's capacity to at least newMax, copying
// the live prefix. It never shrinks.
func (s *Species) GrowMovers(newMax int) {
	if newMax <= len(s.PM) {
		return
	}
	grown := make([]Mover, newMax)
	copy(grown, s.PM[:s.Nm])
	s.PM = grown
}

// GrowthResult reports what EnsureCapacity did, for the caller's warning
// log (spec.md §7: capacity exhaustion is a recoverable, warned error).
type GrowthResult struct {
	GrewParticles       bool
	OldMaxNp, NewMaxNp int
	GrewMovers          bool
	OldMaxNm, NewMaxNm int
}

// EnsureCapacity grows P and/or PM, via growTo, so that Np+addP <= MaxNp and
// Nm+addM <= MaxNm (invariant I4, capacity-before-write). growTo implements
// the geometric growth rule (spec.md §4.4); it is injected rather than
// imported from config to keep this package dependency-free.
func (s *Species) EnsureCapacity(growTo func(int) int, addP, addM int) GrowthResult {
	var r GrowthResult
	r.OldMaxNp, r.OldMaxNm = s.MaxNp(), s.MaxNm()

	if need := s.Np + addP; need > s.MaxNp() {
		s.GrowParticles(growTo(need))
		r.GrewParticles = true
	}
	if need := s.Nm + addM; need > s.MaxNm() {
		s.GrowMovers(growTo(need))
		r.GrewMovers = true
	}
	r.NewMaxNp, r.NewMaxNm = s.MaxNp(), s.MaxNm()
	return r
}

// ValidateMoversAscending checks invariant M1: pm[k].I must be strictly
// increasing. The Mover Scan relies on this to process movers in reverse
// without aliasing a not-yet-processed mover's referent.
func (s *Species) ValidateMoversAscending() error {
	for k := 1; k < s.Nm; k++ {
		if s.PM[k].I <= s.PM[k-1].I {
			return fmt.Errorf("particle: species %q movers not strictly increasing at index %d (pm[%d].I=%d, pm[%d].I=%d)",
				s.Name, k, k-1, s.PM[k-1].I, k, s.PM[k].I)
		}
	}
	return nil
}

// Table indexes species by their sp_id (spec.md §4.4's sp_table[0..63]).
type Table struct {
	bySpID [64]*Species
}

// NewTable builds a species table from a species list, validating that
// every ID is in [0, 64) — a configuration error otherwise (spec.md §7).
func NewTable(species []*Species) (*Table, error) {
	t := &Table{}
	for _, sp := range species {
		if sp.ID < 0 || sp.ID >= 64 {
			return nil, fmt.Errorf("particle: species %q has id %d, want [0,64)", sp.Name, sp.ID)
		}
		t.bySpID[sp.ID] = sp
	}
	return t, nil
}

// Lookup returns the species registered under spID, or an error if spID is
// out of range or unregistered — the protocol error from spec.md §7 for an
// injector arriving with an unknown sp_id.
func (t *Table) Lookup(spID int32) (*Species, error) {
	if spID < 0 || int(spID) >= len(t.bySpID) {
		return nil, fmt.Errorf("particle: sp_id %d out of range [0,64)", spID)
	}
	sp := t.bySpID[spID]
	if sp == nil {
		return nil, fmt.Errorf("particle: sp_id %d not registered", spID)
	}
	return sp, nil
}

// All returns every registered species in ascending sp_id order.
func (t *Table) All() []*Species {
	var out []*Species
	for _, sp := range t.bySpID {
		if sp != nil {
			out = append(out, sp)
		}
	}
	return out
}
