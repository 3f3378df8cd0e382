package transport

import (
	"context"
	"sync"
	"time"

	"github.com/agobrik/unity-sim-packs-sub001/pkg/replicore/types"
)

type envelope struct {
	origin types.PeerID
	frame  []byte
}

// LoopbackHub wires a set of in-process LoopbackTransports together,
// standing in for a real network for tests and the demo CLI.
type LoopbackHub struct {
	mutex sync.RWMutex
	peers map[types.PeerID]*LoopbackTransport
}

func NewLoopbackHub() *LoopbackHub {
	return &LoopbackHub{peers: make(map[types.PeerID]*LoopbackTransport)}
}

// NewTransport registers a new peer on the hub and returns its
// Transport. The returned transport's producer channel is buffered at
// 100, mirroring the teacher's ReliableTransport buffering.
func (h *LoopbackHub) NewTransport(id types.PeerID, logger types.Logger) *LoopbackTransport {
	ctx, cancel := context.WithCancel(context.Background())
	t := &LoopbackTransport{
		id:       id,
		hub:      h,
		producer: make(chan envelope, 100),
		ctx:      ctx,
		cancel:   cancel,
		logger:   logger,
	}
	h.mutex.Lock()
	h.peers[id] = t
	h.mutex.Unlock()
	go t.poll()
	return t
}

func (h *LoopbackHub) unregister(id types.PeerID) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	delete(h.peers, id)
}

func (h *LoopbackHub) recipients(dest types.PeerID, from types.PeerID) []*LoopbackTransport {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	if dest != types.Broadcast {
		if t, ok := h.peers[dest]; ok {
			return []*LoopbackTransport{t}
		}
		return nil
	}
	out := make([]*LoopbackTransport, 0, len(h.peers))
	for id, t := range h.peers {
		if id != from {
			out = append(out, t)
		}
	}
	return out
}

// LoopbackTransport is an in-memory, channel-based Transport
// implementation, grounded on the teacher's ReliableTransport poll
// goroutine and buffered producer channel.
type LoopbackTransport struct {
	id       types.PeerID
	hub      *LoopbackHub
	producer chan envelope
	handler  func(types.PeerID, []byte)
	handlerMu sync.RWMutex
	ctx      context.Context
	cancel   context.CancelFunc
	logger   types.Logger
}

func (t *LoopbackTransport) OnReceive(handler func(origin types.PeerID, frame []byte)) {
	t.handlerMu.Lock()
	defer t.handlerMu.Unlock()
	t.handler = handler
}

// Send delivers frame to every recipient's inbound queue. Grounded on
// the teacher's consume()'s 250ms enqueue timeout: a slow or dead
// recipient is logged and skipped rather than blocking the sender.
func (t *LoopbackTransport) Send(ctx context.Context, dest types.PeerID, frame []byte) error {
	recipients := t.hub.recipients(dest, t.id)
	for _, r := range recipients {
		timeout, cancel := context.WithTimeout(ctx, 250*time.Millisecond)
		select {
		case r.producer <- envelope{origin: t.id, frame: frame}:
		case <-timeout.Done():
			if t.logger != nil {
				t.logger.Warnf("transport: %s failed delivering to %s: queue full", t.id, r.id)
			}
		}
		cancel()
	}
	return nil
}

func (t *LoopbackTransport) poll() {
	for {
		select {
		case <-t.ctx.Done():
			return
		case env, ok := <-t.producer:
			if !ok {
				return
			}
			t.handlerMu.RLock()
			handler := t.handler
			t.handlerMu.RUnlock()
			if handler != nil {
				handler(env.origin, env.frame)
			}
		}
	}
}

func (t *LoopbackTransport) Close() error {
	t.cancel()
	t.hub.unregister(t.id)
	return nil
}
