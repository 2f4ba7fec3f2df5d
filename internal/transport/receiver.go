package transport

import (
	"context"
	"encoding/binary"
	"errors"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"trackmand/internal/metrics"
)

// pollInterval bounds how long a single ReadFromUDP call may block
// before the receive loop re-checks its stop signal, matching §5's
// "observe the stop flag within O(100ms)" requirement.
const pollInterval = 100 * time.Millisecond

// stopWait is how long Stop blocks for the receive loop to exit before
// giving up and closing the socket out from under it anyway.
const stopWait = 2 * time.Second

// Receiver owns the inbound socket and a background goroutine that
// validates, filters, and accumulates inbound fragment payloads into a
// bounded word buffer.
type Receiver struct {
	conn *net.UDPConn
	log  *logrus.Logger
	met  *metrics.Metrics

	mu      sync.Mutex
	filters []string
	words   []uint32

	cancel context.CancelFunc
	done   chan struct{}
}

// NewReceiver binds the receive socket. Start must be called separately
// to begin the background read loop. An empty filters list falls back to
// DefaultFilter. met may be nil.
func NewReceiver(port uint16, filters []string, log *logrus.Logger, met *metrics.Metrics) (*Receiver, error) {
	if len(filters) == 0 {
		filters = []string{DefaultFilter}
	}
	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: int(port)})
	if err != nil {
		return nil, err
	}
	return &Receiver{
		conn:    conn,
		log:     log,
		met:     met,
		filters: append([]string(nil), filters...),
	}, nil
}

// Start launches the background receive loop, grounded on the
// context-cancellation shape of a hardware capture goroutine: a derived,
// cancelable context and a done channel closed on exit.
func (r *Receiver) Start(ctx context.Context) {
	captureCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	go r.receiveLoop(captureCtx)
}

func (r *Receiver) receiveLoop(ctx context.Context) {
	defer close(r.done)

	buf := make([]byte, MaxDatagram)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_ = r.conn.SetReadDeadline(time.Now().Add(pollInterval))
		n, _, err := r.conn.ReadFromUDP(buf)
		if err != nil {
			if !isTimeout(err) {
				select {
				case <-ctx.Done():
					return
				default:
				}
			}
			continue
		}

		r.handleDatagram(buf[:n])
	}
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func (r *Receiver) handleDatagram(datagram []byte) {
	if len(datagram) < HeaderSize {
		r.log.WithField("size", len(datagram)).Debug("transport: datagram shorter than header, dropping")
		r.drop("short_datagram")
		return
	}

	header, err := DecodeHeader(datagram[:HeaderSize])
	if err != nil {
		r.log.WithError(err).Warn("transport: malformed header, dropping")
		r.drop("malformed_header")
		return
	}
	payload := datagram[HeaderSize:]

	if uint32(len(payload)) != header.FragmentSize {
		r.log.WithFields(logrus.Fields{
			"header_fragment_size": header.FragmentSize,
			"actual_size":          len(payload),
		}).Debug("transport: fragment_size mismatch, dropping")
		r.drop("fragment_size_mismatch")
		return
	}

	if header.FragmentIndex >= header.TotalFragments {
		r.log.WithFields(logrus.Fields{
			"fragment_index":  header.FragmentIndex,
			"total_fragments": header.TotalFragments,
		}).Debug("transport: fragment_index out of range, dropping")
		r.drop("fragment_index_out_of_range")
		return
	}

	if len(payload)%4 != 0 {
		r.log.WithField("size", len(payload)).Debug("transport: payload not a whole number of words, dropping")
		r.drop("unaligned_payload")
		return
	}

	if !r.matchesFilter(header.PacketID) {
		r.log.WithField("packet_id", header.PacketID).Debug("transport: packet_id filter mismatch, dropping")
		r.drop("filter_mismatch")
		return
	}

	if got := Checksum(payload); got != header.Checksum {
		r.log.WithFields(logrus.Fields{
			"header_checksum":     header.Checksum,
			"calculated_checksum": got,
		}).Debug("transport: checksum mismatch, dropping")
		r.drop("checksum_mismatch")
		return
	}

	words := make([]uint32, len(payload)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(payload[i*4 : i*4+4])
	}

	r.mu.Lock()
	if len(r.words)+len(words) > ReceiveBufferCapacityWords {
		r.mu.Unlock()
		r.log.WithFields(logrus.Fields{
			"buffered":  len(r.words),
			"incoming":  len(words),
			"capacity":  ReceiveBufferCapacityWords,
			"packet_id": header.PacketID,
		}).Warn("transport: receive buffer would overflow, dropping datagram")
		r.drop("receive_buffer_full")
		return
	}
	r.words = append(r.words, words...)
	r.mu.Unlock()

	if r.met != nil {
		r.met.FragmentsReceivedTotal.Inc()
	}
}

func (r *Receiver) drop(reason string) {
	if r.met != nil {
		r.met.DatagramsDroppedTotal.WithLabelValues(reason).Inc()
	}
}

// Addr returns the receive socket's bound local address, useful for
// tests binding to port 0 for an ephemeral port.
func (r *Receiver) Addr() *net.UDPAddr {
	return r.conn.LocalAddr().(*net.UDPAddr)
}

func (r *Receiver) matchesFilter(packetID string) bool {
	for _, f := range r.filters {
		if strings.Contains(packetID, f) {
			return true
		}
	}
	return false
}

// TakeAll returns everything accumulated since the last TakeAll and
// resets the buffer, non-blocking.
func (r *Receiver) TakeAll() []uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	words := r.words
	r.words = nil
	return words
}

// Stop cancels the receive loop and waits up to stopWait for it to exit
// before closing the socket.
func (r *Receiver) Stop() {
	if r.cancel == nil {
		return
	}
	r.cancel()
	select {
	case <-r.done:
	case <-time.After(stopWait):
		r.log.Warn("transport: receive loop did not stop within the timeout")
	}
	_ = r.conn.Close()
}
