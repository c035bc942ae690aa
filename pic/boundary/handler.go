// Package boundary implements the Mover Scan: the reverse walk over each
// species' pending-motion list that classifies every flagged particle as
// absorbed, remote-migrating, or custom-handled, and backfills the hole it
// leaves behind.
package boundary

import (
	"math/rand"

	"github.com/pthm-cable/picx/pic/field"
	"github.com/pthm-cable/picx/pic/grid"
	"github.com/pthm-cable/picx/pic/particle"
)

// Accumulator is the out-of-scope current-accumulation collaborator a
// custom boundary handler may touch; the boundary-exchange core never reads
// or writes through it itself. The pusher that owns it is outside this
// module's scope (spec.md §1's "out of scope" list).
type Accumulator any

// Cmlist is the local custom-handler overflow buffer: a write-cursor a
// handler appends zero-or-one injector to. It is process-wide persistent
// across Scan calls (spec.md §5, §9): capacity is grown monotonically to
// the largest mover count ever seen and never released, while Reset clears
// only the logical length at the start of each Scan.
type Cmlist struct {
	Buf []particle.Injector
	N   int
}

// Reset clears Cmlist's logical length without releasing its backing
// array, so capacity built up by a previous Scan call is reused rather
// than reallocated.
func (c *Cmlist) Reset() { c.N = 0 }

// EnsureCapacity grows Buf, via growTo, so Append cannot overflow. It never
// shrinks, matching the growth discipline in particle.Species.
func (c *Cmlist) EnsureCapacity(growTo func(int) int, add int) {
	if need := c.N + add; need > len(c.Buf) {
		grown := make([]particle.Injector, growTo(need))
		copy(grown, c.Buf[:c.N])
		c.Buf = grown
	}
}

// Append records one injector, growing Buf on demand.
func (c *Cmlist) Append(inj particle.Injector) {
	if c.N >= len(c.Buf) {
		c.EnsureCapacity(func(n int) int { return n + n/4 + n/16 + 1 }, 1)
	}
	c.Buf[c.N] = inj
	c.N++
}

// HandlerContext is everything a custom boundary handler gets read/write
// access to (spec.md §4.2, item 3).
type HandlerContext struct {
	P       *particle.Particle
	PM      *particle.Mover
	Field   *field.Field
	Accum   Accumulator
	Grid    *grid.View
	Species *particle.Species
	CM      *Cmlist
	RNG     *rand.Rand
	Face    int
}

// Handler is a custom boundary handler. It owns the decision to deposit the
// incident particle's charge (via field.Deposit) or re-emit it (via
// ctx.CM.Append); the Mover Scan always backfills the hole afterward
// regardless of what the handler did. Per spec.md Non-goal (ii), a handler
// emitting more than one reinjection per incident particle is unsupported.
type Handler func(ctx *HandlerContext)

// Handlers indexes registered custom-boundary handlers by slot
// (grid.Decoded.HandlerSlot).
type Handlers []Handler
