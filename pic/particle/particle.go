// Package particle defines the per-species particle, mover, and injector
// data model used by the boundary-exchange core, and the growable,
// swap-backfill species storage that keeps each species' live particles
// packed into a dense prefix.
package particle

// Particle is one charged macro-particle: a logical cell-local coordinate
// (each component in [-1,+1], a face at +-1), the owning cell index, its
// momentum, and its charge.
type Particle struct {
	DX, DY, DZ float32
	I          int32 // Fortran-ordered flat index over the ghost-padded mesh
	UX, UY, UZ float32
	Q          float32
}

// Mover is a pending-motion record: the particle's still-unresolved
// displacement, and I, the index into the owning species' particle array
// (not a cell index) of the particle it describes.
//
// Invariant M1: within one species, movers are kept in strictly increasing
// I order. This is what makes the Mover Scan's reverse walk plus
// swap-with-last backfill safe (see boundary.Scan).
type Mover struct {
	DispX, DispY, DispZ float32
	I                   int32
}

// Injector is a self-contained migration record: a full particle plus its
// residual displacement and species tag. It never aliases particle storage
// and is produced by the Mover Scan, consumed by the Reinjector.
type Injector struct {
	DX, DY, DZ          float32
	DestCell            int32
	UX, UY, UZ          float32
	Q                   float32
	DispX, DispY, DispZ float32
	SpID                int32
}

// NewInjector builds an injector from a particle's post-crossing fields,
// its residual mover displacement, the resolved destination cell index, and
// the species tag.
func NewInjector(p Particle, destCell int32, disp Mover, spID int32) Injector {
	return Injector{
		DX: p.DX, DY: p.DY, DZ: p.DZ,
		DestCell: destCell,
		UX:       p.UX, UY: p.UY, UZ: p.UZ,
		Q:        p.Q,
		DispX:    disp.DispX, DispY: disp.DispY, DispZ: disp.DispZ,
		SpID: spID,
	}
}

// ToParticle converts the injector's particle portion into a Particle sited
// at DestCell, factoring out the source's reinterpret-cast of an injector
// onto a particle+mover pair into an explicit conversion (spec.md §9).
func (inj Injector) ToParticle() Particle {
	return Particle{
		DX: inj.DX, DY: inj.DY, DZ: inj.DZ,
		I:  inj.DestCell,
		UX: inj.UX, UY: inj.UY, UZ: inj.UZ,
		Q: inj.Q,
	}
}

// ToMoverDraft converts the injector's residual-displacement portion into a
// Mover. The caller (Reinjector) must still set I to the particle's new
// array index before replaying it through move_p.
func (inj Injector) ToMoverDraft() Mover {
	return Mover{DispX: inj.DispX, DispY: inj.DispY, DispZ: inj.DispZ}
}
