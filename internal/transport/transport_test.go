package transport

import (
	"context"
	"net"
	"testing"
	"time"

	logrustest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trackmand/internal/config"
)

func TestTransportSendReceiveAndReload(t *testing.T) {
	log, _ := logrustest.NewNullLogger()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dst, err := net.ResolveUDPAddr("udp", "127.0.0.1:0")
	require.NoError(t, err)

	cfg := config.Config{
		DestIP:      dst.IP,
		DestPort:    uint16(dst.Port),
		RecvPort:    0,
		RecvFilters: []string{"TRACK_PACKET"},
	}

	tr, err := New(ctx, cfg, log, nil)
	require.NoError(t, err)
	defer tr.Close()

	oldAddr := tr.receiver.Addr()
	require.NoError(t, tr.Reload(cfg))
	newAddr := tr.receiver.Addr()
	assert.NotEqual(t, oldAddr.Port, newAddr.Port, "reload should rebuild the receive socket on a fresh port")

	sender, err := NewSender(newAddr, nil)
	require.NoError(t, err)
	defer sender.Close()

	require.NoError(t, sender.Send([]uint32{42}))

	deadline := time.Now().Add(2 * time.Second)
	var got []uint32
	for time.Now().Before(deadline) && len(got) == 0 {
		got = tr.TakeAll()
		time.Sleep(5 * time.Millisecond)
	}
	assert.Equal(t, []uint32{42}, got)
}
