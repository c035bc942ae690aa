package boundary

import (
	"testing"

	"github.com/pthm-cable/picx/pic/field"
	"github.com/pthm-cable/picx/pic/grid"
	"github.com/pthm-cable/picx/pic/particle"
)

// smallView builds a 4x4x4, single-rank grid whose neighbor table encodes:
// face 0 (-x) -> absorb; face 3 (+x) -> remote (rank 1); face 1 (-y) ->
// custom handler slot 0; everything else -> internal/local.
func smallView() *grid.View {
	v := &grid.View{
		NX: 4, NY: 4, NZ: 4,
		RDX: 1, RDY: 1, RDZ: 1,
		Rangel: 0, Rangeh: 999,
		Range:         []int{0, 1000, 1100},
		Rank:          0,
		NProc:         2,
		NumBoundaries: 1,
	}
	v.Neighbor = make([]int64, 6*v.NumCells())
	cellOf := func(ix, iy, iz int) int {
		nxp2, nyp2 := v.NX+2, v.NY+2
		return ix + nxp2*(iy+nyp2*iz)
	}
	base := cellOf(1, 1, 1)
	v.Neighbor[6*base+grid.FaceNegX] = grid.AbsorbSentinel
	v.Neighbor[6*base+grid.FacePosX] = 1000 // owned by rank 1, dest index 0
	v.Neighbor[6*base+grid.FaceNegY] = -3    // custom handler slot 0
	return v
}

func newSpeciesWithOneMover(p particle.Particle) *particle.Species {
	sp := particle.NewSpecies("electron", 0, 8, 8)
	sp.Np = 1
	sp.P[0] = p
	sp.Nm = 1
	sp.PM[0] = particle.Mover{I: 0}
	return sp
}

func TestScanAbsorbDepositsAndBackfills(t *testing.T) {
	v := smallView()
	f := field.New(v.NumCells())
	p := particle.Particle{DX: -1, UX: -0.5, Q: 1, I: int32(cellIdx(v, 1, 1, 1))}
	sp := newSpeciesWithOneMover(p)

	res, err := Scan(sp, v, f, nil, nil, nil, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sp.Np != 0 {
		t.Fatalf("np = %d, want 0 (particle absorbed)", sp.Np)
	}
	if sp.Nm != 0 {
		t.Fatalf("nm = %d, want 0 (invariant I3)", sp.Nm)
	}
	if res.DepositedCharge != 1 {
		t.Fatalf("deposited charge = %v, want 1", res.DepositedCharge)
	}
}

func TestScanRemoteMigrationEmitsInjector(t *testing.T) {
	v := smallView()
	f := field.New(v.NumCells())
	p := particle.Particle{DX: 1, UX: 0.1, UY: 2, Q: 1, I: int32(cellIdx(v, 1, 1, 1))}
	sp := newSpeciesWithOneMover(p)
	sp.PM[0] = particle.Mover{I: 0, DispX: 0.2}

	res, err := Scan(sp, v, f, nil, nil, nil, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sp.Np != 0 {
		t.Fatalf("np = %d, want 0", sp.Np)
	}
	out := res.SendBuf[grid.FacePosX]
	if len(out) != 1 {
		t.Fatalf("send_buf[+x] has %d injectors, want 1", len(out))
	}
	inj := out[0]
	if inj.DX != -1 {
		t.Fatalf("injector.DX = %v, want -1 (reflected)", inj.DX)
	}
	if inj.UY != 2 {
		t.Fatalf("injector.UY = %v, want unchanged 2", inj.UY)
	}
	if inj.DestCell != 0 {
		t.Fatalf("injector.DestCell = %d, want 0", inj.DestCell)
	}
	if inj.SpID != 0 {
		t.Fatalf("injector.SpID = %d, want 0", inj.SpID)
	}
}

func TestScanCustomHandlerInvokedAndBackfilled(t *testing.T) {
	v := smallView()
	f := field.New(v.NumCells())
	p := particle.Particle{DY: -1, UY: -0.3, UX: 9, Q: 1, I: int32(cellIdx(v, 1, 1, 1))}
	sp := newSpeciesWithOneMover(p)

	var sawFace int
	handlers := Handlers{
		func(ctx *HandlerContext) {
			sawFace = ctx.Face
			inverted := *ctx.P
			inverted.UY = -inverted.UY
			ctx.CM.Append(particle.NewInjector(inverted, ctx.P.I, *ctx.PM, ctx.Species.ID))
		},
	}

	res, err := Scan(sp, v, f, handlers, nil, nil, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sawFace != grid.FaceNegY {
		t.Fatalf("handler saw face %d, want %d", sawFace, grid.FaceNegY)
	}
	if sp.Np != 0 {
		t.Fatalf("np = %d, want 0 (handler-destroyed particle backfilled)", sp.Np)
	}
	if len(res.Local) != 1 {
		t.Fatalf("local buffer has %d injectors, want 1", len(res.Local))
	}
	if res.Local[0].UY != 0.3 {
		t.Fatalf("local injector UY = %v, want 0.3 (inverted)", res.Local[0].UY)
	}
}

func TestScanUnclassifiedWarnsAndAbsorbs(t *testing.T) {
	v := smallView()
	f := field.New(v.NumCells())
	// No face condition fires: dx is interior, not at +-1.
	p := particle.Particle{DX: 0.1, DY: 0.1, DZ: 0.1, Q: 1, I: int32(cellIdx(v, 2, 2, 2))}
	sp := newSpeciesWithOneMover(p)

	var warned bool
	res, err := Scan(sp, v, f, nil, nil, nil, nil, func(format string, args ...any) { warned = true })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !warned {
		t.Fatal("expected a warning for the unclassified interaction")
	}
	if res.UnclassifiedHits != 1 {
		t.Fatalf("UnclassifiedHits = %d, want 1", res.UnclassifiedHits)
	}
	if sp.Np != 0 {
		t.Fatalf("np = %d, want 0 (unclassified interaction falls through to absorption)", sp.Np)
	}
}

func TestScanMonotoneMoversLeaveNoAliasing(t *testing.T) {
	v := smallView()
	f := field.New(v.NumCells())

	sp := particle.NewSpecies("electron", 0, 8, 8)
	sp.Np = 3
	sp.P[0] = particle.Particle{DX: -1, UX: -1, Q: 1, I: int32(cellIdx(v, 1, 1, 1))}
	sp.P[1] = particle.Particle{DX: 0.5, I: int32(cellIdx(v, 2, 2, 2))} // not flagged
	sp.P[2] = particle.Particle{DX: -1, UX: -1, Q: 2, I: int32(cellIdx(v, 1, 1, 1))}
	sp.Nm = 2
	sp.PM[0] = particle.Mover{I: 0}
	sp.PM[1] = particle.Mover{I: 2}

	res, err := Scan(sp, v, f, nil, nil, nil, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sp.Np != 1 {
		t.Fatalf("np = %d, want 1", sp.Np)
	}
	if sp.P[0].DX != 0.5 {
		t.Fatalf("surviving particle DX = %v, want 0.5 (untouched particle backfilled correctly)", sp.P[0].DX)
	}
	if res.DepositedCharge != 3 {
		t.Fatalf("deposited charge = %v, want 3 (1+2)", res.DepositedCharge)
	}
}

func TestScanCmlistCapacityPersistsAcrossCalls(t *testing.T) {
	v := smallView()
	f := field.New(v.NumCells())

	handlers := Handlers{
		func(ctx *HandlerContext) {
			ctx.CM.Append(particle.NewInjector(*ctx.P, ctx.P.I, *ctx.PM, ctx.Species.ID))
		},
	}

	var cm Cmlist
	p := particle.Particle{DY: -1, UY: -0.3, Q: 1, I: int32(cellIdx(v, 1, 1, 1))}
	sp := newSpeciesWithOneMover(p)

	if _, err := Scan(sp, v, f, handlers, nil, nil, &cm, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	grownCap := cap(cm.Buf)
	if grownCap == 0 {
		t.Fatal("expected cmlist to grow capacity on first call")
	}

	sp2 := newSpeciesWithOneMover(p)
	res2, err := Scan(sp2, v, f, handlers, nil, nil, &cm, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cap(cm.Buf) != grownCap {
		t.Fatalf("cmlist capacity = %d on second call, want unchanged %d (capacity persists)", cap(cm.Buf), grownCap)
	}
	if len(res2.Local) != 1 {
		t.Fatalf("second call's local buffer has %d injectors, want 1 (logical length reset, not capacity)", len(res2.Local))
	}
}

func cellIdx(v *grid.View, ix, iy, iz int) int {
	nxp2, nyp2 := v.NX+2, v.NY+2
	return ix + nxp2*(iy+nyp2*iz)
}
