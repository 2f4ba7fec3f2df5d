package track

import (
	"encoding/binary"
	"io"
)

// State is a track's lifecycle state.
type State int32

const (
	StateNormal       State = 0
	StateExtrapolated State = 1
	StateTerminated   State = 2
	StateFree         State = -1
)

// String implements fmt.Stringer for log output.
func (s State) String() string {
	switch s {
	case StateNormal:
		return "NORMAL"
	case StateExtrapolated:
		return "EXTRAPOLATED"
	case StateTerminated:
		return "TERMINATED"
	case StateFree:
		return "FREE"
	default:
		return "UNKNOWN"
	}
}

// Header is a track's fixed-layout metadata: id, extrapolation counter,
// point count, and lifecycle state.
type Header struct {
	ID            uint32
	Extrapolation uint32
	PointCount    uint32
	State         State
}

// headerWireSize is the encoded size of a Header: three uint32 plus one
// int32 state, little-endian, no implicit padding.
const headerWireSize = 4 * 4

// Encode writes h's wire representation (headerWireSize bytes) to w.
func (h Header) Encode(w io.Writer) error {
	var buf [headerWireSize]byte
	binary.LittleEndian.PutUint32(buf[0:4], h.ID)
	binary.LittleEndian.PutUint32(buf[4:8], h.Extrapolation)
	binary.LittleEndian.PutUint32(buf[8:12], h.PointCount)
	binary.LittleEndian.PutUint32(buf[12:16], uint32(int32(h.State)))
	_, err := w.Write(buf[:])
	return err
}

// DecodeHeader reads a Header's wire representation from r.
func DecodeHeader(r io.Reader) (Header, error) {
	var buf [headerWireSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return Header{}, err
	}
	return Header{
		ID:            binary.LittleEndian.Uint32(buf[0:4]),
		Extrapolation: binary.LittleEndian.Uint32(buf[4:8]),
		PointCount:    binary.LittleEndian.Uint32(buf[8:12]),
		State:         State(int32(binary.LittleEndian.Uint32(buf[12:16]))),
	}, nil
}

// HeaderWireSize is the number of bytes one encoded Header occupies.
func HeaderWireSize() int { return headerWireSize }

func freeHeader() Header {
	return Header{ID: 0, Extrapolation: 0, PointCount: 0, State: StateFree}
}
