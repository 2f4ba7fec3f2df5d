package transport

import (
	"context"
	"net"
	"testing"
	"time"

	logrustest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestReceiver(t *testing.T, filters []string) (*Receiver, context.CancelFunc) {
	t.Helper()
	log, _ := logrustest.NewNullLogger()
	r, err := NewReceiver(0, filters, log, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	r.Start(ctx)
	t.Cleanup(r.Stop)
	return r, cancel
}

func waitForWords(t *testing.T, r *Receiver, want int) []uint32 {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	var got []uint32
	for time.Now().Before(deadline) {
		got = append(got, r.TakeAll()...)
		if len(got) >= want {
			return got
		}
		time.Sleep(5 * time.Millisecond)
	}
	return got
}

// Scenario 5: a 2000-word (8000-byte) payload fragments into 3 datagrams
// of 3936 + 3936 + 128 payload bytes, packet ids TRACK_PACKET_0_3,
// TRACK_PACKET_1_3, TRACK_PACKET_2_3.
func TestSendReceiveFragmentationScenario(t *testing.T) {
	r, cancel := newTestReceiver(t, []string{"TRACK_PACKET"})
	defer cancel()

	sender, err := NewSender(r.Addr(), nil)
	require.NoError(t, err)
	defer sender.Close()

	words := make([]uint32, 2000)
	for i := range words {
		words[i] = uint32(i)
	}

	require.NoError(t, sender.Send(words))

	got := waitForWords(t, r, len(words))
	assert.Equal(t, words, got)
}

func TestReceiverRejectsFilterMismatch(t *testing.T) {
	r, cancel := newTestReceiver(t, []string{"TRACK_MERGE_COMMAND"})
	defer cancel()

	sender, err := NewSender(r.Addr(), nil)
	require.NoError(t, err)
	defer sender.Close()

	require.NoError(t, sender.Send([]uint32{1, 2, 3}))

	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, r.TakeAll())
}

func TestReceiverRejectsChecksumMismatch(t *testing.T) {
	r, cancel := newTestReceiver(t, []string{"TRACK_PACKET"})
	defer cancel()

	conn, err := net.DialUDP("udp", nil, r.Addr())
	require.NoError(t, err)
	defer conn.Close()

	payload := []byte{1, 2, 3, 4}
	header := Header{
		PacketID:       "TRACK_PACKET_0_1",
		TotalFragments: 1,
		FragmentIndex:  0,
		TotalSize:      4,
		FragmentSize:   4,
		Checksum:       Checksum(payload) ^ 0xffffffff, // deliberately wrong
	}
	datagram := append(header.Encode(), payload...)
	_, err = conn.Write(datagram)
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, r.TakeAll())
}

func TestReceiverRejectsShortDatagram(t *testing.T) {
	r, cancel := newTestReceiver(t, []string{"TRACK_PACKET"})
	defer cancel()

	conn, err := net.DialUDP("udp", nil, r.Addr())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write(make([]byte, HeaderSize-1))
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, r.TakeAll())
}

func TestTakeAllResetsBuffer(t *testing.T) {
	r, cancel := newTestReceiver(t, []string{"TRACK_PACKET"})
	defer cancel()

	sender, err := NewSender(r.Addr(), nil)
	require.NoError(t, err)
	defer sender.Close()

	require.NoError(t, sender.Send([]uint32{7, 8, 9}))
	got := waitForWords(t, r, 3)
	assert.Equal(t, []uint32{7, 8, 9}, got)
	assert.Empty(t, r.TakeAll())
}

func TestSendRejectsEmptyPayload(t *testing.T) {
	log, _ := logrustest.NewNullLogger()
	r, err := NewReceiver(0, []string{"TRACK_PACKET"}, log, nil)
	require.NoError(t, err)
	defer r.conn.Close()

	sender, err := NewSender(r.Addr(), nil)
	require.NoError(t, err)
	defer sender.Close()

	assert.ErrorIs(t, sender.Send(nil), ErrEmptyPayload)
}
