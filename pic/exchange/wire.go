// Package exchange implements the Injector Marshaller, the two-phase
// size-then-payload Exchange Protocol, and the Reinjector: packing outbound
// injectors into per-face wire buffers, trading them with up to six peer
// ranks, and replaying every received injector back into its species'
// particle and mover storage.
package exchange

import (
	"encoding/binary"
	"fmt"

	"github.com/pthm-cable/picx/pic/particle"
)

// headerSize is the fixed 16-byte prefix carrying the injector count
// (spec.md §4.3: "the first 16 bytes carry the injector count, for
// alignment and future extension").
const headerSize = 16

// recordSize is sizeof(particle_injector_t): 10 floats + 2 int32s.
const recordSize = 10*4 + 2*4

// EncodeBuffer packs injs into a wire buffer: a 16-byte count header
// followed by the packed records.
func EncodeBuffer(injs []particle.Injector) []byte {
	buf := make([]byte, headerSize+len(injs)*recordSize)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(injs)))
	for i, inj := range injs {
		marshalInjector(buf[headerSize+i*recordSize:], inj)
	}
	return buf
}

// DecodeBuffer unpacks a wire buffer produced by EncodeBuffer.
func DecodeBuffer(buf []byte) ([]particle.Injector, error) {
	if len(buf) < headerSize {
		return nil, fmt.Errorf("exchange: buffer has %d bytes, want at least %d for the header", len(buf), headerSize)
	}
	count := int(binary.LittleEndian.Uint32(buf[0:4]))
	want := headerSize + count*recordSize
	if len(buf) != want {
		return nil, fmt.Errorf("exchange: buffer has %d bytes, want %d for count %d", len(buf), want, count)
	}
	out := make([]particle.Injector, count)
	for i := range out {
		out[i] = unmarshalInjector(buf[headerSize+i*recordSize:])
	}
	return out, nil
}

func marshalInjector(buf []byte, inj particle.Injector) {
	putFloat32(buf[0:], inj.DX)
	putFloat32(buf[4:], inj.DY)
	putFloat32(buf[8:], inj.DZ)
	binary.LittleEndian.PutUint32(buf[12:], uint32(inj.DestCell))
	putFloat32(buf[16:], inj.UX)
	putFloat32(buf[20:], inj.UY)
	putFloat32(buf[24:], inj.UZ)
	putFloat32(buf[28:], inj.Q)
	putFloat32(buf[32:], inj.DispX)
	putFloat32(buf[36:], inj.DispY)
	putFloat32(buf[40:], inj.DispZ)
	binary.LittleEndian.PutUint32(buf[44:], uint32(inj.SpID))
}

func unmarshalInjector(buf []byte) particle.Injector {
	return particle.Injector{
		DX: getFloat32(buf[0:]), DY: getFloat32(buf[4:]), DZ: getFloat32(buf[8:]),
		DestCell: int32(binary.LittleEndian.Uint32(buf[12:])),
		UX:       getFloat32(buf[16:]), UY: getFloat32(buf[20:]), UZ: getFloat32(buf[24:]),
		Q:     getFloat32(buf[28:]),
		DispX: getFloat32(buf[32:]), DispY: getFloat32(buf[36:]), DispZ: getFloat32(buf[40:]),
		SpID: int32(binary.LittleEndian.Uint32(buf[44:])),
	}
}
