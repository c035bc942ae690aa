package field

import (
	"gonum.org/v1/gonum/blas/blas32"

	"github.com/pthm-cable/picx/pic/grid"
	"github.com/pthm-cable/picx/pic/particle"
)

// Deposit adds p's charge, weighted by trilinear shape, into the eight
// rhob slots surrounding its cell, doubling the weights that land on an
// external domain edge. This is accumulate_rhob from spec.md §4.1: the
// only write path that ever touches Rhob.
func Deposit(f *Field, p particle.Particle, v *grid.View) {
	nxp2 := v.NX + 2
	nyp2 := v.NY + 2

	// Decode the Fortran-ordered flat index back into (ix,iy,iz).
	rem := int(p.I)
	iz := rem / (nxp2 * nyp2)
	rem -= iz * (nxp2 * nyp2)
	iy := rem / nxp2
	ix := rem - iy*nxp2

	w0 := float64(p.Q) * v.RDX * v.RDY * v.RDZ / 8

	// The eight trilinear corner fractions, in the fixed (1±x)(1±y)(1±z)
	// order accumulate_rhob writes them: low-z quad then high-z quad, each
	// in (--,+-,-+,++) x/y order.
	x := float64(p.DX)
	y := float64(p.DY)
	z := float64(p.DZ)
	frac := []float32{
		float32((1 - x) * (1 - y) * (1 - z)),
		float32((1 + x) * (1 - y) * (1 - z)),
		float32((1 - x) * (1 + y) * (1 - z)),
		float32((1 + x) * (1 + y) * (1 - z)),
		float32((1 - x) * (1 - y) * (1 + z)),
		float32((1 + x) * (1 - y) * (1 + z)),
		float32((1 - x) * (1 + y) * (1 + z)),
		float32((1 + x) * (1 + y) * (1 + z)),
	}

	// Scale all eight corner fractions by w0 in one vectorized pass, the
	// way the teacher's flow-blend benchmark scales a blas32.Vector
	// (systems/simd_bench_test.go, BenchmarkFlowBlendBLAS).
	vec := blas32.Vector{N: len(frac), Inc: 1, Data: frac}
	blas32.Scal(float32(w0), vec)

	// Edge doubling: low-z quad is frac[0:4], high-z quad is frac[4:8];
	// within each quad, indices 0/2 are low-x, 1/3 are high-x, 0/1 are
	// low-y, 2/3 are high-y.
	if ix == 1 {
		doubleWhere(frac, func(k int) bool { return k%2 == 0 })
	}
	if ix == v.NX {
		doubleWhere(frac, func(k int) bool { return k%2 == 1 })
	}
	if iy == 1 {
		doubleWhere(frac, func(k int) bool { return k%4 < 2 })
	}
	if iy == v.NY {
		doubleWhere(frac, func(k int) bool { return k%4 >= 2 })
	}
	if iz == 1 {
		doubleWhere(frac, func(k int) bool { return k < 4 })
	}
	if iz == v.NZ {
		doubleWhere(frac, func(k int) bool { return k >= 4 })
	}

	// Stride-walk the eight rhob slots from the base index, in the same
	// order the original's pointer-arithmetic walk visits them: {+x,
	// +y-x, +z-y-x}.
	strideX := 1
	strideY := nxp2 - 1
	strideZ := nxp2*nyp2 - (nxp2 + 1)

	idx := int(p.I)
	offsets := [8]int{}
	offsets[0] = idx
	offsets[1] = offsets[0] + strideX
	offsets[2] = offsets[1] + strideY
	offsets[3] = offsets[2] + strideX
	offsets[4] = offsets[3] + strideZ
	offsets[5] = offsets[4] + strideX
	offsets[6] = offsets[5] + strideY
	offsets[7] = offsets[6] + strideX

	for k, off := range offsets {
		f.Rhob[off] += frac[k]
	}
}

func doubleWhere(frac []float32, match func(k int) bool) {
	for k := range frac {
		if match(k) {
			frac[k] *= 2
		}
	}
}
