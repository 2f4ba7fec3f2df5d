package transport

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"trackmand/internal/config"
	"trackmand/internal/metrics"
)

// Transport owns both the send and receive sides of the datagram
// protocol (spec §4.5 lifecycle): construction creates both sockets and
// starts the receive goroutine; Reload stops it, rebuilds the receive
// socket under new configuration, and restarts it, clearing the receive
// buffer; Close stops the receive goroutine and closes both sockets.
type Transport struct {
	log *logrus.Logger
	met *metrics.Metrics

	sender   *Sender
	receiver *Receiver
	ctx      context.Context
}

// New builds both sockets from cfg and starts the receive goroutine
// under ctx.
func New(ctx context.Context, cfg config.Config, log *logrus.Logger, met *metrics.Metrics) (*Transport, error) {
	sender, err := NewSender(cfg.DestUDPAddr(), met)
	if err != nil {
		return nil, fmt.Errorf("transport: %w", err)
	}

	receiver, err := NewReceiver(cfg.RecvPort, cfg.RecvFilters, log, met)
	if err != nil {
		sender.Close()
		return nil, fmt.Errorf("transport: %w", err)
	}
	receiver.Start(ctx)

	return &Transport{log: log, met: met, sender: sender, receiver: receiver, ctx: ctx}, nil
}

// Send fragments and sends words on the current send socket.
func (t *Transport) Send(words []uint32) error {
	return t.sender.Send(words)
}

// TakeAll drains and resets the receiver's accumulated word buffer.
func (t *Transport) TakeAll() []uint32 {
	return t.receiver.TakeAll()
}

// Reload stops the receive goroutine, rebuilds the receive socket under
// cfg's port and filters, and restarts it. The receive buffer is
// discarded, matching §4.5's "reload... clears the receive buffer". Only
// the receive side is rebuilt, matching §4.5's reload contract; the send
// socket stays connected to the destination given to New, and a changed
// destination in cfg is not applied.
func (t *Transport) Reload(cfg config.Config) error {
	t.receiver.Stop()

	receiver, err := NewReceiver(cfg.RecvPort, cfg.RecvFilters, t.log, t.met)
	if err != nil {
		return fmt.Errorf("transport: reload: rebuild receive socket: %w", err)
	}
	receiver.Start(t.ctx)
	t.receiver = receiver

	return nil
}

// Close stops the receive goroutine and closes both sockets.
func (t *Transport) Close() {
	t.receiver.Stop()
	t.sender.Close()
}
