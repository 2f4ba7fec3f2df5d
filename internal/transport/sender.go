package transport

import (
	"encoding/binary"
	"fmt"
	"net"
	"time"

	"trackmand/internal/metrics"
)

// Sender owns the outbound socket. net.UDPConn is safe for concurrent
// use by multiple goroutines, so Sender needs no send mutex of its own.
type Sender struct {
	conn *net.UDPConn
	met  *metrics.Metrics
}

// NewSender dials dest as the fixed peer for every subsequent Send. met
// may be nil.
func NewSender(dest *net.UDPAddr, met *metrics.Metrics) (*Sender, error) {
	conn, err := net.DialUDP("udp", nil, dest)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", dest, err)
	}
	return &Sender{conn: conn, met: met}, nil
}

// Close releases the underlying socket.
func (s *Sender) Close() error {
	return s.conn.Close()
}

// Send fragments words (interpreted as little-endian 4-byte words) into
// one or more datagrams of at most FragmentPayloadMax payload bytes
// each, sending them in order. It stops and reports failure on the
// first fragment send failure; prior fragments are not un-sent.
func (s *Sender) Send(words []uint32) error {
	payload := make([]byte, len(words)*4)
	for i, w := range words {
		binary.LittleEndian.PutUint32(payload[i*4:i*4+4], w)
	}
	return s.sendPayload(payload)
}

func (s *Sender) sendPayload(payload []byte) error {
	total := len(payload)
	if total == 0 {
		return ErrEmptyPayload
	}
	if total > MaxPayloadBytes {
		return fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, total)
	}

	totalFragments := (total + FragmentPayloadMax - 1) / FragmentPayloadMax

	for idx := 0; idx < totalFragments; idx++ {
		offset := idx * FragmentPayloadMax
		size := FragmentPayloadMax
		if offset+size > total {
			size = total - offset
		}
		fragment := payload[offset : offset+size]

		header := Header{
			PacketID:       fmt.Sprintf("%s_%d_%d", packetIDPrefix, idx, totalFragments),
			TotalFragments: uint32(totalFragments),
			FragmentIndex:  uint32(idx),
			TotalSize:      uint32(total),
			FragmentSize:   uint32(size),
			Checksum:       Checksum(fragment),
		}

		datagram := append(header.Encode(), fragment...)
		if _, err := s.conn.Write(datagram); err != nil {
			return fmt.Errorf("transport: send fragment %d/%d: %w", idx, totalFragments, err)
		}
		if s.met != nil {
			s.met.FragmentsSentTotal.Inc()
		}

		if totalFragments > 1 && idx < totalFragments-1 {
			time.Sleep(100 * time.Microsecond)
		}
	}

	return nil
}
