package grid

import "testing"

func smallView() *View {
	// 2 ranks, rank 0 owns cells [0,99], rank 1 owns [100,199].
	return &View{
		NX: 4, NY: 4, NZ: 4,
		Rangel: 0, Rangeh: 99,
		Range:  []int{0, 100, 200},
		Rank:   0,
		NProc:  2,
		BC:     [NumFaces]int{2, 2, 2, 1, 2, 2}, // face 3 (+x) shared with rank 1
	}
}

func TestDecodeAbsorb(t *testing.T) {
	v := smallView()
	d := v.Decode(AbsorbSentinel)
	if d.Kind != KindAbsorb {
		t.Fatalf("want KindAbsorb, got %v", d.Kind)
	}
}

func TestDecodeInternal(t *testing.T) {
	v := smallView()
	d := v.Decode(50)
	if d.Kind != KindInternal {
		t.Fatalf("want KindInternal, got %v", d.Kind)
	}
}

func TestDecodeRemote(t *testing.T) {
	v := smallView()
	d := v.Decode(150)
	if d.Kind != KindRemote {
		t.Fatalf("want KindRemote, got %v", d.Kind)
	}
	if d.PeerRank != 1 {
		t.Fatalf("want peer rank 1, got %d", d.PeerRank)
	}
	if d.DestIndex != 50 {
		t.Fatalf("want dest index 50, got %d", d.DestIndex)
	}
}

func TestDecodeCustom(t *testing.T) {
	v := smallView()
	v.NumBoundaries = 2
	// slot 0 -> nn = -0-3 = -3
	d := v.Decode(-3)
	if d.Kind != KindCustom || d.HandlerSlot != 0 {
		t.Fatalf("want custom slot 0, got %+v", d)
	}
	// slot 1 -> nn = -4
	d = v.Decode(-4)
	if d.Kind != KindCustom || d.HandlerSlot != 1 {
		t.Fatalf("want custom slot 1, got %+v", d)
	}
}

func TestDecodeCustomOutOfRange(t *testing.T) {
	v := smallView()
	v.NumBoundaries = 1
	d := v.Decode(-4) // slot 1, but only slot 0 registered
	if d.Kind != KindUnknown {
		t.Fatalf("want KindUnknown for out-of-range handler slot, got %v", d.Kind)
	}
}

func TestSharedRemotely(t *testing.T) {
	v := smallView()
	if !v.SharedRemotely(FacePosX) {
		t.Fatal("face +x should be shared remotely")
	}
	if v.SharedRemotely(FaceNegX) {
		t.Fatal("face -x should not be shared remotely (bc==2, out of [0,NProc))")
	}
}

func TestOppositeFace(t *testing.T) {
	cases := map[int]int{
		FaceNegX: FacePosX,
		FaceNegY: FacePosY,
		FaceNegZ: FacePosZ,
		FacePosX: FaceNegX,
		FacePosY: FaceNegY,
		FacePosZ: FaceNegZ,
	}
	for f, want := range cases {
		if got := OppositeFace(f); got != want {
			t.Errorf("OppositeFace(%d) = %d, want %d", f, got, want)
		}
	}
}

func TestValidateRejectsSharedAndCustomFace(t *testing.T) {
	v := smallView()
	v.CustomFace[FacePosX] = true
	if err := v.Validate(); err == nil {
		t.Fatal("expected configuration error for shared+custom face")
	}
}

func TestValidateOK(t *testing.T) {
	v := smallView()
	if err := v.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
