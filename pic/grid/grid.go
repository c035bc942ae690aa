// Package grid provides the read-only topology view consumed by the
// boundary-exchange core: per-cell neighbor codes, the owned index range,
// the global range table, the face-to-boundary-code map, and the
// custom-boundary registry count.
package grid

import (
	"fmt"
	"sort"
)

// Sentinel neighbor codes. A negative code n satisfying n != AbsorbSentinel
// and n != ReflectSentinel decodes to custom-boundary slot -n-3.
const (
	AbsorbSentinel  int64 = -1
	ReflectSentinel int64 = -2
)

// Faces, in the fixed dispatch order used throughout the core.
const (
	FaceNegX = iota
	FaceNegY
	FaceNegZ
	FacePosX
	FacePosY
	FacePosZ
	NumFaces = 6
)

// OppositeFace returns the inward face of the same axis as f — the face a
// particle re-enters through on the peer that owns the neighboring cell.
func OppositeFace(f int) int { return (f + 3) % NumFaces }

// Kind classifies a decoded neighbor code.
type Kind int

const (
	KindInternal Kind = iota
	KindAbsorb
	KindRemote
	KindCustom
	KindUnknown
)

// Decoded is the result of classifying one neighbor code for one face.
type Decoded struct {
	Kind Kind

	// Valid when Kind == KindRemote.
	PeerRank  int
	DestIndex int

	// Valid when Kind == KindCustom.
	HandlerSlot int
}

// View is the read-only topology consumed by the Mover Scan and Exchange
// Protocol. It never mutates; all per-step state lives in the caller's
// species arrays and send/receive buffers.
type View struct {
	NX, NY, NZ    int
	RDX, RDY, RDZ float64

	// Neighbor is the flattened 6*NumCells() neighbor-code table: for cell c
	// and face f, Neighbor[6*c+f] is the code described in spec.md §3.
	Neighbor []int64

	// Rangel, Rangeh bound the locally owned cell-index interval [Rangel, Rangeh].
	Rangel, Rangeh int

	// Range is the global base-index table, Range[r]..Range[r+1] for rank r,
	// with Range[NProc] == Rangem (the grand total).
	Range []int

	Rank, NProc int

	// BC holds the boundary code (peer rank, or a value outside [0,NProc)
	// when the face isn't shared with another rank) for each of the 6 faces,
	// indexed in the fixed face order above.
	BC [NumFaces]int

	// CustomFace marks faces statically configured to dispatch into the
	// custom-boundary handler array (set at topology-build time); used only
	// to catch the configuration error in spec.md §7 Non-goal (i).
	CustomFace [NumFaces]bool

	// NumBoundaries is the size of the custom-boundary handler array; valid
	// handler slots are [0, NumBoundaries).
	NumBoundaries int
}

// NumCells returns the ghost-padded mesh cell count (NX+2)(NY+2)(NZ+2).
func (v *View) NumCells() int {
	return (v.NX + 2) * (v.NY + 2) * (v.NZ + 2)
}

// Rangem is the grand total cell count across all ranks.
func (v *View) Rangem() int {
	if len(v.Range) == 0 {
		return 0
	}
	return v.Range[len(v.Range)-1]
}

// SharedRemotely reports whether face f's boundary code designates a rank
// other than this one, within [0, NProc) — spec.md §3's SHARED_REMOTELY.
func (v *View) SharedRemotely(f int) bool {
	bc := v.BC[f]
	return bc >= 0 && bc < v.NProc && bc != v.Rank
}

// Validate checks the configuration-error classes from spec.md §7 that are
// knowable from the topology alone (face-level conflicts and a malformed
// range table). Per-particle/mover errors are reported by the scanner.
func (v *View) Validate() error {
	for f := 0; f < NumFaces; f++ {
		if v.SharedRemotely(f) && v.CustomFace[f] {
			return fmt.Errorf("grid: face %d is both shared remotely (rank %d) and carries a custom boundary handler", f, v.BC[f])
		}
	}
	if len(v.Range) != v.NProc+1 {
		return fmt.Errorf("grid: range table has %d entries, want %d (NProc+1)", len(v.Range), v.NProc+1)
	}
	return nil
}

// Decode classifies neighbor code nn, per the rules in spec.md §3.
func (v *View) Decode(nn int64) Decoded {
	switch {
	case nn == AbsorbSentinel:
		return Decoded{Kind: KindAbsorb}
	case int(nn) >= v.Rangel && int(nn) <= v.Rangeh:
		return Decoded{Kind: KindInternal}
	case (nn >= 0 && int(nn) < v.Rangel) || (int(nn) > v.Rangeh && int(nn) <= v.Rangem()):
		rank, base, ok := v.owningRank(nn)
		if !ok {
			return Decoded{Kind: KindUnknown}
		}
		return Decoded{Kind: KindRemote, PeerRank: rank, DestIndex: int(nn) - base}
	case nn < 0 && nn != AbsorbSentinel && nn != ReflectSentinel:
		slot := int(-nn - 3)
		if slot >= 0 && slot < v.NumBoundaries {
			return Decoded{Kind: KindCustom, HandlerSlot: slot}
		}
		return Decoded{Kind: KindUnknown}
	default:
		return Decoded{Kind: KindUnknown}
	}
}

// owningRank finds the rank r such that Range[r] <= nn < Range[r+1].
func (v *View) owningRank(nn int64) (rank, base int, ok bool) {
	n := int(nn)
	// Range is ascending; find the last base <= n via binary search.
	idx := sort.Search(len(v.Range), func(i int) bool { return v.Range[i] > n }) - 1
	if idx < 0 || idx >= v.NProc {
		return 0, 0, false
	}
	return idx, v.Range[idx], true
}
