// Package controller implements the Replication Controller (spec.md
// §4.6): the per-tick orchestrator that drains inbound messages,
// detects and resolves conflicts, applies accepted mutations,
// reconciles predictions, snapshots history, flushes outbound
// messages, and performs tick maintenance. Grounded on the teacher's
// Unity (pkg/mcast/protocol.go) — the single orchestrator owning
// state, clock, transport, and storage and driving the tick loop.
package controller

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/agobrik/unity-sim-packs-sub001/pkg/replicore/codec"
	"github.com/agobrik/unity-sim-packs-sub001/pkg/replicore/conflict"
	"github.com/agobrik/unity-sim-packs-sub001/pkg/replicore/events"
	"github.com/agobrik/unity-sim-packs-sub001/pkg/replicore/history"
	"github.com/agobrik/unity-sim-packs-sub001/pkg/replicore/pipeline"
	"github.com/agobrik/unity-sim-packs-sub001/pkg/replicore/prediction"
	"github.com/agobrik/unity-sim-packs-sub001/pkg/replicore/registry"
	"github.com/agobrik/unity-sim-packs-sub001/pkg/replicore/store"
	"github.com/agobrik/unity-sim-packs-sub001/pkg/replicore/transport"
	"github.com/agobrik/unity-sim-packs-sub001/pkg/replicore/types"
)

var (
	tickDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "replicore",
		Name:      "tick_duration_seconds",
		Help:      "Wall-clock duration of one controller tick.",
		Buckets:   prometheus.DefBuckets,
	})
	conflictsResolved = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "replicore",
		Name:      "conflicts_resolved_total",
		Help:      "Conflicts resolved, by policy.",
	}, []string{"policy"})
	messageRetries = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "replicore",
		Name:      "message_retries_total",
		Help:      "Ack-pending messages retransmitted.",
	})
	rollbacksApplied = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "replicore",
		Name:      "rollbacks_applied_total",
		Help:      "Rollback-policy restores applied.",
	})
	maintenanceErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "replicore",
		Name:      "maintenance_errors_total",
		Help:      "Errors raised while retransmitting acks during tick maintenance.",
	})
)

func init() {
	prometheus.MustRegister(tickDuration, conflictsResolved, messageRetries, rollbacksApplied, maintenanceErrors)
}

// Controller is the single owner of every other core component for
// the lifetime of the session; it passes them to helper methods as
// exclusive borrows within one tick, per spec.md §9.
type Controller struct {
	mutex sync.Mutex

	id     types.PeerID
	config Config
	logger types.Logger

	registry   *registry.Registry
	store      *store.Store
	history    *history.Buffer
	inbound    *pipeline.OutboundQueue
	outbound   *pipeline.OutboundQueue
	reorder    *pipeline.Reorderer
	acks       *pipeline.AckTable
	baselines  *pipeline.BaselineTracker
	resolver   *conflict.Resolver
	predictor  *prediction.Tracker
	events     *events.Bus
	transport  transport.Transport

	pendingConflicts map[types.EntityID][]types.Candidate
	tick             types.Tick
	kickThreshold    int
	violationCounts  map[types.PeerID]int
	outboundSeq      uint64
}

// New builds a Controller for the local peer id. transport is the
// injected adapter (spec.md §6); a LoopbackTransport is sufficient for
// tests and the demo.
func New(id types.PeerID, cfg Config, tp transport.Transport, logger types.Logger) *Controller {
	c := &Controller{
		id:               id,
		config:           cfg,
		logger:           logger,
		registry:         registry.New(cfg.TimeoutThreshold, cfg.MaxPeers),
		store:            store.New(),
		history:          history.New(cfg.RollbackWindowTicks),
		inbound:          pipeline.NewOutboundQueue(),
		outbound:         pipeline.NewOutboundQueue(),
		reorder:          pipeline.NewReorderer(cfg.ReorderWindow),
		acks:             pipeline.NewAckTable(cfg.RetryTicks, cfg.MaxRetries),
		baselines:        pipeline.NewBaselineTracker(),
		resolver:         conflict.NewResolver(id, cfg.MergeRules),
		predictor:        prediction.NewTracker(),
		events:           events.NewBus(),
		transport:        tp,
		pendingConflicts: make(map[types.EntityID][]types.Candidate),
		kickThreshold:    5,
		violationCounts:  make(map[types.PeerID]int),
	}
	tp.OnReceive(c.onFrame)
	return c
}

// Events returns the Controller's event bus for subscriber
// registration.
func (c *Controller) Events() *events.Bus { return c.events }

// Registry, Store, and History expose the owned components for
// read-only inspection (tests, the demo CLI's status printer).
func (c *Controller) Registry() *registry.Registry { return c.registry }
func (c *Controller) Store() *store.Store           { return c.store }
func (c *Controller) History() *history.Buffer      { return c.history }

// onFrame is the transport receive callback: it decodes the wire frame
// and feeds it through the reorder window, enqueuing everything that
// becomes deliverable for the next tick's drain step.
func (c *Controller) onFrame(origin types.PeerID, frame []byte) {
	msg, err := codec.DecodeFrame(frame)
	if err != nil {
		c.recordViolation(origin, err.Error())
		return
	}
	msg.Origin = origin

	c.mutex.Lock()
	defer c.mutex.Unlock()

	delivered, err := c.reorder.Accept(msg)
	if err != nil {
		c.recordViolation(origin, err.Error())
		return
	}
	for _, m := range delivered {
		c.inbound.Enqueue(m)
	}
}

// recordMaintenanceErrors surfaces the *multierror.Error returned by
// maintain: every retransmit failure it aggregated is logged and
// counted individually instead of being dropped on the floor.
func (c *Controller) recordMaintenanceErrors(err error) {
	merr, ok := err.(*multierror.Error)
	if !ok {
		maintenanceErrors.Inc()
		if c.logger != nil {
			c.logger.Errorf("tick maintenance error: %v", err)
		}
		return
	}
	for _, wrapped := range merr.Errors {
		maintenanceErrors.Inc()
		if c.logger != nil {
			c.logger.Errorf("tick maintenance error: %v", wrapped)
		}
	}
}

func (c *Controller) recordViolation(peer types.PeerID, detail string) {
	c.violationCounts[peer]++
	if c.logger != nil {
		c.logger.Warnf("protocol violation from %s: %s", peer, detail)
	}
	if c.violationCounts[peer] >= c.kickThreshold {
		c.registry.Detach(peer)
		c.events.EmitPeerLeft(events.PeerLeft{Peer: peer})
		delete(c.violationCounts, peer)
	}
}

// Tick executes one full pass of the seven-step algorithm from
// spec.md §4.6. It is meant to be driven by clock.Scheduler's
// TickFunc.
func (c *Controller) Tick(tick types.Tick, at time.Time) {
	start := time.Now()
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.tick = tick

	c.drainInbound(tick)
	c.detectAndResolveConflicts(tick)
	c.reconcilePredictions(tick)
	c.snapshot(tick)
	c.flushOutbound(tick)
	if err := c.maintain(tick, at); err != nil {
		c.recordMaintenanceErrors(err)
	}

	tickDuration.Observe(time.Since(start).Seconds())
}

// drainInbound is step 1: pop inbound messages in priority order and
// dispatch to the handler for their type.
func (c *Controller) drainInbound(tick types.Tick) {
	for _, msg := range c.inbound.Drain() {
		c.handle(msg, tick)
	}
}

// snapshot is step 5: record the end-of-tick frame.
func (c *Controller) snapshot(tick types.Tick) {
	c.history.Snapshot(tick, c.store.Snapshot())
	c.events.EmitSnapshotTaken(events.SnapshotTaken{Tick: tick})
}

// maintain is step 7: retry acks, sweep lock TTLs, evict stale
// predictions, prune unresponsive peers.
func (c *Controller) maintain(tick types.Tick, at time.Time) error {
	var errs *multierror.Error

	retransmit, timedOut := c.acks.Sweep(tick)
	for _, msg := range retransmit {
		messageRetries.Inc()
		if err := c.send(msg); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	for _, id := range timedOut {
		c.events.EmitMessageTimeout(events.MessageTimeout{MessageID: id})
	}

	for _, entityID := range c.store.SweepExpiredLocks(tick) {
		c.events.EmitLockDenied(events.LockDenied{Entity: entityID})
	}

	oldest := c.history.OldestTick()
	for _, peer := range c.registry.All() {
		for entityID := range c.pendingConflicts {
			c.predictor.Expire(peer.ID, entityID, oldest)
		}
	}

	for _, peer := range c.registry.Prune(at) {
		for _, entityID := range c.store.ReleaseLocksForPeer(peer) {
			c.events.EmitLockDenied(events.LockDenied{Entity: entityID, Peer: peer})
		}
		c.baselines.Forget(peer)
		c.predictor.Forget(peer)
		c.events.EmitPeerLeft(events.PeerLeft{Peer: peer})
	}

	return errs.ErrorOrNil()
}

// send encodes msg through codec and hands it to the transport. Every
// message this controller originates is stamped with the next value
// from its own per-origin monotonic sequence (spec.md §3, §4.5) the
// first time it is sent; a retransmit pulled back out of the ack
// table already carries that sequence and is not re-stamped.
func (c *Controller) send(msg types.Message) error {
	if msg.Sequence == 0 {
		c.outboundSeq++
		msg.Sequence = c.outboundSeq
	}
	frame, err := codec.EncodeFrame(msg, c.config.CompressionThresholdBytes)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if msg.RequiresAck {
		c.acks.Track(msg, c.tick)
	}
	return c.transport.Send(ctx, msg.Destination, frame)
}

// sortedEntityIDs is a small helper the conflict-resolution step uses
// for deterministic iteration order.
func sortedEntityIDs(ids map[types.EntityID][]types.Candidate) []types.EntityID {
	out := make([]types.EntityID, 0, len(ids))
	for id := range ids {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
