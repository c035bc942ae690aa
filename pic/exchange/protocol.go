package exchange

import (
	"encoding/binary"
	"fmt"

	"github.com/pthm-cable/picx/pic/grid"
	"github.com/pthm-cable/picx/pic/particle"
)

// sizeTag and payloadTag partition the tag space so a face's size message
// and its payload message can never be confused, even though both phases
// address the same (peer, face) pair.
func sizeTag(f int) int    { return f }
func payloadTag(f int) int { return f + grid.NumFaces }

// Exchange runs the two-phase size-then-payload protocol over v's six
// faces (spec.md §4.3): for every SHARED_REMOTELY face, it posts a
// non-blocking size send/receive, drains both, then posts the payload
// send/receive sized from the discovered count, and drains the receives.
// It returns the six per-face inbound injector slices (unshared faces come
// back nil). It waits on its own outbound payload sends before returning,
// so no transfer is still in flight when it returns.
func Exchange(link Link, v *grid.View, sendBuf [grid.NumFaces][]particle.Injector) ([grid.NumFaces][]particle.Injector, error) {
	var recvBuf [grid.NumFaces][]particle.Injector
	var shared [grid.NumFaces]bool
	for f := 0; f < grid.NumFaces; f++ {
		shared[f] = v.SharedRemotely(f)
	}

	// Size phase.
	var sizeSendH [grid.NumFaces]SendHandle
	var sizeRecvH [grid.NumFaces]RecvHandle
	for f := 0; f < grid.NumFaces; f++ {
		if !shared[f] {
			continue
		}
		szbuf := make([]byte, 4)
		binary.LittleEndian.PutUint32(szbuf, uint32(len(sendBuf[f])))
		sizeSendH[f] = link.ISend(v.BC[f], sizeTag(f), szbuf)
		sizeRecvH[f] = link.IRecv(v.BC[f], sizeTag(grid.OppositeFace(f)))
	}

	var ns [grid.NumFaces]int
	for f := 0; f < grid.NumFaces; f++ {
		if !shared[f] {
			continue
		}
		data, err := sizeRecvH[f].Wait()
		if err != nil {
			return recvBuf, fmt.Errorf("exchange: face %d size recv: %w", f, err)
		}
		if len(data) != 4 {
			return recvBuf, fmt.Errorf("exchange: face %d size message has %d bytes, want 4", f, len(data))
		}
		ns[f] = int(binary.LittleEndian.Uint32(data))
	}
	for f := 0; f < grid.NumFaces; f++ {
		if !shared[f] {
			continue
		}
		if err := sizeSendH[f].Wait(); err != nil {
			return recvBuf, fmt.Errorf("exchange: face %d size send: %w", f, err)
		}
	}

	// Payload phase.
	var paySendH [grid.NumFaces]SendHandle
	var payRecvH [grid.NumFaces]RecvHandle
	for f := 0; f < grid.NumFaces; f++ {
		if !shared[f] {
			continue
		}
		paySendH[f] = link.ISend(v.BC[f], payloadTag(f), EncodeBuffer(sendBuf[f]))
		payRecvH[f] = link.IRecv(v.BC[f], payloadTag(grid.OppositeFace(f)))
	}

	for f := 0; f < grid.NumFaces; f++ {
		if !shared[f] {
			continue
		}
		data, err := payRecvH[f].Wait()
		if err != nil {
			return recvBuf, fmt.Errorf("exchange: face %d payload recv: %w", f, err)
		}
		injs, err := DecodeBuffer(data)
		if err != nil {
			return recvBuf, fmt.Errorf("exchange: face %d: %w", f, err)
		}
		if len(injs) != ns[f] {
			return recvBuf, fmt.Errorf("exchange: face %d payload carries %d injectors, size phase announced %d", f, len(injs), ns[f])
		}
		recvBuf[f] = injs
	}
	for f := 0; f < grid.NumFaces; f++ {
		if !shared[f] {
			continue
		}
		if err := paySendH[f].Wait(); err != nil {
			return recvBuf, fmt.Errorf("exchange: face %d payload send: %w", f, err)
		}
	}

	return recvBuf, nil
}
