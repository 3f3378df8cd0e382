// Package clock implements the Clock & Scheduler component (spec.md
// §4.1): a fixed-rate tick source and heartbeat source. Every other
// replicore component is pure between ticks — the Scheduler is the only
// thing that owns a goroutine driving wall-clock time.
package clock

import (
	"context"
	"sync"
	"time"

	promlog "github.com/prometheus/common/log"

	"github.com/agobrik/unity-sim-packs-sub001/pkg/replicore/types"
)

// Clock is the monotonic clock the core consumes. SystemClock is the
// production implementation; any other Clock can be injected in its
// place.
type Clock interface {
	Now() time.Time
}

// SystemClock wraps time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// TickFunc is invoked once per tick, single-threaded: the Scheduler
// never calls it again until it returns.
type TickFunc func(tick types.Tick, at time.Time)

// HeartbeatFunc is invoked once per heartbeat interval.
type HeartbeatFunc func(at time.Time)

// Scheduler drives fixed-rate ticks at rate Hz and heartbeats at
// interval H. It is single-threaded cooperative: one tick completes
// before the next begins. If a tick overruns its budget, later ticks
// are coalesced — at most one tick is queued, further accumulation is
// dropped with a logged warning. If the clock regresses, ticks freeze
// until monotonicity is restored; no rollback is invoked for clock
// glitches.
type Scheduler struct {
	clock       Clock
	tickPeriod  time.Duration
	heartbeatEvery time.Duration
	logger      types.Logger

	mutex      sync.Mutex
	tickNum    types.Tick
	lastTickAt time.Time
	frozen     bool
}

// NewScheduler builds a Scheduler for the given tick rate (Hz) and
// heartbeat interval.
func NewScheduler(clk Clock, tickRateHz int, heartbeatInterval time.Duration, logger types.Logger) *Scheduler {
	if tickRateHz <= 0 {
		tickRateHz = 60
	}
	return &Scheduler{
		clock:          clk,
		tickPeriod:     time.Second / time.Duration(tickRateHz),
		heartbeatEvery: heartbeatInterval,
		logger:         logger,
	}
}

// Run drives onTick and onHeartbeat until ctx is cancelled. It blocks.
func (s *Scheduler) Run(ctx context.Context, onTick TickFunc, onHeartbeat HeartbeatFunc) {
	ticker := time.NewTicker(s.tickPeriod)
	defer ticker.Stop()

	var heartbeatTicker *time.Ticker
	var heartbeatCh <-chan time.Time
	if s.heartbeatEvery > 0 {
		heartbeatTicker = time.NewTicker(s.heartbeatEvery)
		defer heartbeatTicker.Stop()
		heartbeatCh = heartbeatTicker.C
	}

	var queuedTick bool
	var droppedCoalesced int

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.runOneTick(onTick) {
				if queuedTick {
					// The coalesced tick runs immediately; anything
					// queued behind it is dropped with a warning.
					queuedTick = false
					if droppedCoalesced > 0 {
						s.logger.Warnf("scheduler: dropped %d coalesced ticks", droppedCoalesced)
						droppedCoalesced = 0
					}
					s.runOneTick(onTick)
				}
			} else {
				// runOneTick declined (frozen clock); nothing to coalesce.
			}
		case at := <-heartbeatCh:
			if onHeartbeat != nil {
				onHeartbeat(at)
			}
		}

		// Detect overrun: if the ticker has already buffered a second
		// fire while we were busy, at most one is coalesced and
		// handled on the next loop iteration; track how many more we
		// silently drop beyond that single slot.
		select {
		case <-ticker.C:
			if queuedTick {
				droppedCoalesced++
			} else {
				queuedTick = true
			}
		default:
		}
	}
}

// runOneTick executes a single tick if the clock is monotonic,
// returning false (and freezing) if it has regressed.
func (s *Scheduler) runOneTick(onTick TickFunc) bool {
	s.mutex.Lock()
	now := s.clock.Now()
	if !s.lastTickAt.IsZero() && now.Before(s.lastTickAt) {
		s.frozen = true
		s.mutex.Unlock()
		promlog.Warnf("clock regressed by %s, freezing ticks", s.lastTickAt.Sub(now))
		return false
	}
	if s.frozen {
		s.frozen = false
		s.logger.Infof("clock monotonicity restored, resuming ticks")
	}
	s.tickNum++
	tickNum := s.tickNum
	s.lastTickAt = now
	s.mutex.Unlock()

	if onTick != nil {
		onTick(tickNum, now)
	}
	return true
}

// CurrentTick returns the last tick number issued.
func (s *Scheduler) CurrentTick() types.Tick {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.tickNum
}
