// Package transport implements the fragmenting datagram transport (spec
// component E): a send path that chunks a payload of 4-byte words into
// bounded, checksummed, self-describing fragments, and a receive path
// that validates, filters, and buffers them.
package transport

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

const (
	// MaxDatagram is the largest datagram this transport will send or
	// expects to receive.
	MaxDatagram = 4096

	// HeaderSize is the fixed wire size of Header.
	HeaderSize = 160

	// FragmentPayloadMax is the most payload bytes a single fragment
	// may carry.
	FragmentPayloadMax = MaxDatagram - HeaderSize

	// MaxPayloadBytes is the send-side ceiling on a logical payload,
	// fragmented or not.
	MaxPayloadBytes = 1 << 30 // 1 GiB

	// ReceiveBufferCapacityWords bounds the receiver's accumulated,
	// not-yet-drained word buffer.
	ReceiveBufferCapacityWords = 10000

	packetIDFieldSize = 128
	packetIDPrefix    = "TRACK_PACKET"

	// DefaultFilter is the accept-filter substring used when no
	// configuration has supplied one yet.
	DefaultFilter = "TRACK_MERGE_COMMAND"
)

// Header is the 160-byte packet header prefixing every fragment: a
// null-padded packet-id string, fragmentation bookkeeping, and an XOR
// checksum over the fragment's payload. 12 trailing bytes are reserved
// and always zero.
type Header struct {
	PacketID       string
	TotalFragments uint32
	FragmentIndex  uint32
	TotalSize      uint32
	FragmentSize   uint32
	Checksum       uint32
}

// Encode writes h's 160-byte wire representation.
func (h Header) Encode() []byte {
	buf := make([]byte, HeaderSize)
	copy(buf[0:packetIDFieldSize], []byte(h.PacketID))
	binary.LittleEndian.PutUint32(buf[128:132], h.TotalFragments)
	binary.LittleEndian.PutUint32(buf[132:136], h.FragmentIndex)
	binary.LittleEndian.PutUint32(buf[136:140], h.TotalSize)
	binary.LittleEndian.PutUint32(buf[140:144], h.FragmentSize)
	binary.LittleEndian.PutUint32(buf[144:148], h.Checksum)
	// buf[148:160] stays zero: reserved.
	return buf
}

// DecodeHeader parses a 160-byte wire header.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, fmt.Errorf("transport: header needs %d bytes, got %d", HeaderSize, len(buf))
	}

	idEnd := bytes.IndexByte(buf[0:packetIDFieldSize], 0)
	if idEnd < 0 {
		idEnd = packetIDFieldSize
	}

	return Header{
		PacketID:       string(buf[0:idEnd]),
		TotalFragments: binary.LittleEndian.Uint32(buf[128:132]),
		FragmentIndex:  binary.LittleEndian.Uint32(buf[132:136]),
		TotalSize:      binary.LittleEndian.Uint32(buf[136:140]),
		FragmentSize:   binary.LittleEndian.Uint32(buf[140:144]),
		Checksum:       binary.LittleEndian.Uint32(buf[144:148]),
	}, nil
}

// Checksum computes the wire checksum: a running XOR of payload
// interpreted as little-endian uint32 words, with 1-3 trailing bytes
// zero-extended into a final word exactly as the tail bytes would sit at
// the low end of a little-endian word.
func Checksum(payload []byte) uint32 {
	var checksum uint32

	words := len(payload) / 4
	for i := 0; i < words; i++ {
		checksum ^= binary.LittleEndian.Uint32(payload[i*4 : i*4+4])
	}

	if rem := len(payload) % 4; rem > 0 {
		var tail [4]byte
		copy(tail[:], payload[words*4:])
		checksum ^= binary.LittleEndian.Uint32(tail[:])
	}

	return checksum
}
