// Package replicore is the composition root: it wires the Clock &
// Scheduler, Transport, and Replication Controller into a single
// runnable session, mirroring the shape of the teacher's
// pkg/mcast/protocol.go NewUnity constructor.
package replicore

import (
	"context"
	"time"

	"github.com/agobrik/unity-sim-packs-sub001/pkg/replicore/clock"
	"github.com/agobrik/unity-sim-packs-sub001/pkg/replicore/controller"
	"github.com/agobrik/unity-sim-packs-sub001/pkg/replicore/definition"
	"github.com/agobrik/unity-sim-packs-sub001/pkg/replicore/events"
	"github.com/agobrik/unity-sim-packs-sub001/pkg/replicore/history"
	"github.com/agobrik/unity-sim-packs-sub001/pkg/replicore/registry"
	"github.com/agobrik/unity-sim-packs-sub001/pkg/replicore/store"
	"github.com/agobrik/unity-sim-packs-sub001/pkg/replicore/transport"
	"github.com/agobrik/unity-sim-packs-sub001/pkg/replicore/types"
)

// Config is the session's full tunable set; it re-exports
// controller.Config so callers of this package never import the
// controller package directly.
type Config = controller.Config

// DefaultConfig returns spec.md §6's defaults.
func DefaultConfig() Config { return controller.DefaultConfig() }

// Session is a running replication core: one Clock & Scheduler driving
// one Replication Controller over one Transport.
type Session struct {
	id         types.PeerID
	controller *controller.Controller
	scheduler  *clock.Scheduler
	logger     types.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// New builds a Session bound to id, communicating over tp, using cfg
// (pass DefaultConfig() for spec.md §6 defaults). If logger is nil, the
// teacher-style logrus-backed definition.DefaultLogger is used.
func New(id types.PeerID, cfg Config, tp transport.Transport, logger types.Logger) *Session {
	if logger == nil {
		logger = definition.NewDefaultLogger()
	}
	ctrl := controller.New(id, cfg, tp, logger)
	sched := clock.NewScheduler(clock.SystemClock{}, cfg.TickRateHz, cfg.HeartbeatInterval, logger)
	return &Session{id: id, controller: ctrl, scheduler: sched, logger: logger}
}

// Run starts the Session's tick loop in a background goroutine. It
// returns immediately; call Stop to halt the loop.
func (s *Session) Run(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go func() {
		defer close(s.done)
		s.scheduler.Run(runCtx, s.controller.Tick, func(at time.Time) {
			s.logger.Debugf("heartbeat at %s", at.Format(time.RFC3339))
		})
	}()
}

// Stop cancels the tick loop and blocks until it has exited.
func (s *Session) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}

// ID returns the session's own peer id.
func (s *Session) ID() types.PeerID { return s.id }

// CurrentTick returns the most recently started tick number; that tick
// may still be running.
func (s *Session) CurrentTick() types.Tick { return s.scheduler.CurrentTick() }

// Events exposes the session's event bus for subscriber registration.
func (s *Session) Events() *events.Bus { return s.controller.Events() }

// Registry, Store, and History expose the Session's core components
// for read-only inspection (demos, status dashboards, tests).
func (s *Session) Registry() *registry.Registry { return s.controller.Registry() }
func (s *Session) Store() *store.Store          { return s.controller.Store() }
func (s *Session) History() *history.Buffer     { return s.controller.History() }
