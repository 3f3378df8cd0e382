package controller_test

import (
	"context"
	"testing"
	"time"

	"github.com/agobrik/unity-sim-packs-sub001/pkg/replicore/codec"
	"github.com/agobrik/unity-sim-packs-sub001/pkg/replicore/controller"
	"github.com/agobrik/unity-sim-packs-sub001/pkg/replicore/definition"
	"github.com/agobrik/unity-sim-packs-sub001/pkg/replicore/events"
	"github.com/agobrik/unity-sim-packs-sub001/pkg/replicore/transport"
	"github.com/agobrik/unity-sim-packs-sub001/pkg/replicore/types"
)

func testConfig() controller.Config {
	cfg := controller.DefaultConfig()
	cfg.RollbackWindowTicks = 10
	cfg.ReorderWindow = 4
	cfg.RetryTicks = 2
	cfg.MaxRetries = 2
	return cfg
}

func deliver(t *testing.T, tp transport.Transport, dest types.PeerID, msg types.Message, cfg controller.Config) {
	t.Helper()
	frame, err := codec.EncodeFrame(msg, cfg.CompressionThresholdBytes)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := tp.Send(context.Background(), dest, frame); err != nil {
		t.Fatalf("send: %v", err)
	}
}

func awaitInbound() { time.Sleep(20 * time.Millisecond) }

func TestController_JoinAttachesPeer(t *testing.T) {
	cfg := testConfig()
	logger := definition.NewDefaultLogger()
	hub := transport.NewLoopbackHub()

	hostTP := hub.NewTransport("host", logger)
	host := controller.New("host", cfg, hostTP, logger)
	clientTP := hub.NewTransport("client", logger)

	deliver(t, clientTP, "host", types.Message{
		ID: types.NewUID(), Type: types.Join, Origin: "client", Sequence: 1,
		Body: types.Payload{"protocol_version": types.StringValue(cfg.ProtocolVersion)},
	}, cfg)
	awaitInbound()

	host.Tick(1, time.Now())

	if _, ok := host.Registry().Get("client"); !ok {
		t.Fatal("expected client to be attached after join")
	}
}

func TestController_StateUpdateAcceptedAndReplicated(t *testing.T) {
	cfg := testConfig()
	logger := definition.NewDefaultLogger()
	hub := transport.NewLoopbackHub()

	hostTP := hub.NewTransport("host", logger)
	host := controller.New("host", cfg, hostTP, logger)
	writerTP := hub.NewTransport("writer", logger)
	observerTP := hub.NewTransport("observer", logger)
	var received []types.Message
	observerTP.OnReceive(func(origin types.PeerID, frame []byte) {
		msg, err := codec.DecodeFrame(frame)
		if err != nil {
			t.Errorf("decode: %v", err)
			return
		}
		msg.Origin = origin
		received = append(received, msg)
	})

	for _, peer := range []types.PeerID{"writer", "observer"} {
		tp := writerTP
		if peer == "observer" {
			tp = observerTP
		}
		deliver(t, tp, "host", types.Message{
			ID: types.NewUID(), Type: types.Join, Origin: peer, Sequence: 1,
			Body: types.Payload{"protocol_version": types.StringValue(cfg.ProtocolVersion)},
		}, cfg)
	}
	awaitInbound()
	host.Tick(1, time.Now())

	deliver(t, writerTP, "host", types.Message{
		ID: types.NewUID(), Type: types.StateUpdate, Origin: "writer", EntityID: "player-1", Sequence: 2,
		Body: types.Payload{"x": types.FloatValue(1.5)},
	}, cfg)
	awaitInbound()
	host.Tick(2, time.Now())
	awaitInbound()

	record, ok := host.Store().Read("player-1")
	if !ok {
		t.Fatal("expected entity to be accepted into the store")
	}
	if v := record.Payload["x"]; v.Float != 1.5 {
		t.Fatalf("expected x=1.5, got %v", v)
	}

	var sawStateUpdate bool
	for _, m := range received {
		if m.Type == types.StateUpdate && m.EntityID == "player-1" {
			sawStateUpdate = true
			if v := m.Body["x"]; v.Float != 1.5 {
				t.Fatalf("expected replicated x=1.5, got %v", v)
			}
		}
	}
	if !sawStateUpdate {
		t.Fatal("expected host to flush the accepted write out to the observing peer")
	}
}

func TestController_LockRequestGrantedSynchronously(t *testing.T) {
	cfg := testConfig()
	logger := definition.NewDefaultLogger()
	hub := transport.NewLoopbackHub()

	hostTP := hub.NewTransport("host", logger)
	host := controller.New("host", cfg, hostTP, logger)
	clientTP := hub.NewTransport("client", logger)

	deliver(t, clientTP, "host", types.Message{
		ID: types.NewUID(), Type: types.Join, Origin: "client", Sequence: 1,
		Body: types.Payload{"protocol_version": types.StringValue(cfg.ProtocolVersion)},
	}, cfg)
	awaitInbound()
	host.Tick(1, time.Now())

	deliver(t, clientTP, "host", types.Message{
		ID: types.NewUID(), Type: types.LockRequest, Origin: "client", EntityID: "door-1", Sequence: 2,
	}, cfg)
	awaitInbound()

	var granted bool
	host.Events().OnLockGranted(func(events.LockGranted) { granted = true })
	host.Tick(2, time.Now())

	if !granted {
		t.Fatal("expected a synchronous lock grant within the same tick")
	}
}

func TestController_ConflictResolvedByLastWriteWins(t *testing.T) {
	cfg := testConfig()
	cfg.DefaultConflictPolicy = types.PolicyLastWriteWins
	logger := definition.NewDefaultLogger()
	hub := transport.NewLoopbackHub()

	hostTP := hub.NewTransport("host", logger)
	host := controller.New("host", cfg, hostTP, logger)
	aTP := hub.NewTransport("a", logger)
	bTP := hub.NewTransport("b", logger)

	for _, peer := range []types.PeerID{"a", "b"} {
		tp := aTP
		if peer == "b" {
			tp = bTP
		}
		deliver(t, tp, "host", types.Message{
			ID: types.NewUID(), Type: types.Join, Origin: peer, Sequence: 1,
			Body: types.Payload{"protocol_version": types.StringValue(cfg.ProtocolVersion)},
		}, cfg)
	}
	awaitInbound()
	host.Tick(1, time.Now())

	// Seed the entity so the second write lands as a genuine conflict
	// (an older tick than the record's last-accepted tick).
	deliver(t, aTP, "host", types.Message{
		ID: types.NewUID(), Type: types.StateUpdate, Origin: "a", EntityID: "flag", Sequence: 2,
		Body: types.Payload{"owner": types.StringValue("a")},
	}, cfg)
	awaitInbound()
	host.Tick(5, time.Now())

	var resolved *events.ConflictResolved
	host.Events().OnConflictResolved(func(e events.ConflictResolved) { resolved = &e })

	deliver(t, bTP, "host", types.Message{
		ID: types.NewUID(), Type: types.StateUpdate, Origin: "b", EntityID: "flag", Sequence: 2,
		Body: types.Payload{"owner": types.StringValue("b")},
	}, cfg)
	awaitInbound()
	host.Tick(3, time.Now())

	if resolved == nil {
		t.Fatal("expected a conflict to be resolved for entity flag")
	}
	if resolved.Report.Policy != types.PolicyLastWriteWins {
		t.Fatalf("expected last_write_wins, got %s", resolved.Report.Policy)
	}
}
