package track

import (
	"encoding/binary"
	"io"
	"math"
)

// Point is one time-stamped track observation. Its layout is fixed so it
// round-trips byte-for-byte through Encode/Decode for wire transfer: six
// float64 motion scalars, an association flag, and a millisecond-precision
// timestamp.
type Point struct {
	Longitude        float64
	Latitude         float64
	SpeedOverGround  float64
	CourseOverGround float64
	ObservationAngle float64
	ObservationRange float64
	Associated       bool
	TimestampMillis  int64
}

// pointWireSize is the encoded size of a Point: six float64 (48 bytes) +
// one bool padded to a byte + one int64, little-endian, no implicit
// padding.
const pointWireSize = 6*8 + 1 + 8

// Encode writes p's wire representation (pointWireSize bytes) to w.
func (p Point) Encode(w io.Writer) error {
	var buf [pointWireSize]byte
	binary.LittleEndian.PutUint64(buf[0:8], math.Float64bits(p.Longitude))
	binary.LittleEndian.PutUint64(buf[8:16], math.Float64bits(p.Latitude))
	binary.LittleEndian.PutUint64(buf[16:24], math.Float64bits(p.SpeedOverGround))
	binary.LittleEndian.PutUint64(buf[24:32], math.Float64bits(p.CourseOverGround))
	binary.LittleEndian.PutUint64(buf[32:40], math.Float64bits(p.ObservationAngle))
	binary.LittleEndian.PutUint64(buf[40:48], math.Float64bits(p.ObservationRange))
	if p.Associated {
		buf[48] = 1
	}
	binary.LittleEndian.PutUint64(buf[49:57], uint64(p.TimestampMillis))
	_, err := w.Write(buf[:])
	return err
}

// DecodePoint reads a Point's wire representation from r.
func DecodePoint(r io.Reader) (Point, error) {
	var buf [pointWireSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return Point{}, err
	}
	return Point{
		Longitude:        math.Float64frombits(binary.LittleEndian.Uint64(buf[0:8])),
		Latitude:         math.Float64frombits(binary.LittleEndian.Uint64(buf[8:16])),
		SpeedOverGround:  math.Float64frombits(binary.LittleEndian.Uint64(buf[16:24])),
		CourseOverGround: math.Float64frombits(binary.LittleEndian.Uint64(buf[24:32])),
		ObservationAngle: math.Float64frombits(binary.LittleEndian.Uint64(buf[32:40])),
		ObservationRange: math.Float64frombits(binary.LittleEndian.Uint64(buf[40:48])),
		Associated:       buf[48] != 0,
		TimestampMillis:  int64(binary.LittleEndian.Uint64(buf[49:57])),
	}, nil
}

// WireSize is the number of bytes one encoded Point occupies.
func WireSize() int { return pointWireSize }
