package services

import (
	"context"
	"errors"
	"runtime/debug"

	perrors "github.com/dpup/prefab/errors"
	"github.com/dpup/prefab/logging"

	"github.com/dpup/mapweather/server/internal/lib/bridge"
	"github.com/dpup/mapweather/server/internal/lib/measure"
)

// ErrInboxFull is returned by Submit when the event loop is behind
var ErrInboxFull = errors.New("bridge inbox full")

// MapHost is the host event loop. It is the only goroutine that touches the
// measurement machine, so clicks are applied strictly in arrival order.
type MapHost struct {
	bridge  *bridge.Bridge
	machine *measure.Machine
	inbox   chan string
}

// NewMapHost creates a host with a bounded inbox
func NewMapHost(b *bridge.Bridge, m *measure.Machine, inboxSize int) *MapHost {
	if inboxSize <= 0 {
		inboxSize = 1
	}
	return &MapHost{
		bridge:  b,
		machine: m,
		inbox:   make(chan string, inboxSize),
	}
}

// Submit queues a raw channel value without blocking
func (h *MapHost) Submit(raw string) error {
	select {
	case h.inbox <- raw:
		return nil
	default:
		return ErrInboxFull
	}
}

// Run drains the inbox until ctx is cancelled
func (h *MapHost) Run(ctx context.Context) {
	logging.Infow(ctx, "Map host event loop started")
	for {
		select {
		case <-ctx.Done():
			logging.Infow(ctx, "Map host stopping due to context cancellation")
			return
		case raw := <-h.inbox:
			h.handle(ctx, raw)
		}
	}
}

// handle applies one channel value. A panic is logged and the loop continues
// with the machine in its last committed state.
func (h *MapHost) handle(ctx context.Context, raw string) {
	defer func() {
		if r := recover(); r != nil {
			err, _ := perrors.ParseStack(debug.Stack())
			logging.Errorw(ctx, "Map host: recovered from panic",
				"error", r, "error.stack_trace", err.MinimalStack(3, 5))
		}
	}()

	ev, ok := h.bridge.OnChannelUpdate(ctx, raw)
	if !ok {
		return
	}
	h.machine.Apply(ctx, ev.Point())
}
