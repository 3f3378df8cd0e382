// Command replicore-demo spins up a host and a handful of clients over
// an in-process LoopbackTransport and drives a few ticks of the
// replication core end to end, printing every observable event as it
// fires. No teacher analogue ships a cmd/ binary; the flag-driven,
// single-file entrypoint shape is grounded on
// ppriyankuu-godkv/cmd/server/main.go.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/agobrik/unity-sim-packs-sub001/pkg/replicore"
	"github.com/agobrik/unity-sim-packs-sub001/pkg/replicore/codec"
	"github.com/agobrik/unity-sim-packs-sub001/pkg/replicore/definition"
	"github.com/agobrik/unity-sim-packs-sub001/pkg/replicore/events"
	"github.com/agobrik/unity-sim-packs-sub001/pkg/replicore/transport"
	"github.com/agobrik/unity-sim-packs-sub001/pkg/replicore/types"
)

func main() {
	clients := flag.Int("clients", 2, "number of client peers to attach alongside the host")
	duration := flag.Duration("duration", 3*time.Second, "how long to run before shutting down")
	tickHz := flag.Int("tick-hz", 60, "tick rate in Hz")
	flag.Parse()

	cfg := replicore.DefaultConfig()
	cfg.TickRateHz = *tickHz

	logger := definition.NewDefaultLogger()
	hub := transport.NewLoopbackHub()

	hostTP := hub.NewTransport("host", logger)
	host := replicore.New("host", cfg, hostTP, logger)
	subscribe(host.Events())

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()
	host.Run(ctx)

	clientTransports := make([]transport.Transport, *clients)
	for i := 0; i < *clients; i++ {
		id := types.PeerID(fmt.Sprintf("client-%d", i))
		clientTransports[i] = hub.NewTransport(id, logger)
		deliver(clientTransports[i], "host", types.Message{
			ID: types.NewUID(), Type: types.Join, Origin: id, Sequence: 1,
			Body: types.Payload{"protocol_version": types.StringValue(cfg.ProtocolVersion)},
		}, cfg)
	}

	time.Sleep(100 * time.Millisecond)

	for i, tp := range clientTransports {
		id := types.PeerID(fmt.Sprintf("client-%d", i))
		deliver(tp, "host", types.Message{
			ID: types.NewUID(), Type: types.StateUpdate, Origin: id, Sequence: 2,
			EntityID: types.EntityID(fmt.Sprintf("player-%d", i)),
			Body:     types.Payload{"hp": types.IntValue(100), "owner": types.StringValue(string(id))},
		}, cfg)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-ctx.Done():
	case <-stop:
	}

	host.Stop()
	fmt.Println(color.CyanString("demo finished at tick %d", host.CurrentTick()))
}

// deliver encodes msg through codec and hands it directly to tp,
// mirroring the test helper the controller package tests use.
func deliver(tp transport.Transport, dest types.PeerID, msg types.Message, cfg replicore.Config) {
	frame, err := codec.EncodeFrame(msg, cfg.CompressionThresholdBytes)
	if err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("encode: %v", err))
		return
	}
	if err := tp.Send(context.Background(), dest, frame); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("send: %v", err))
	}
}

// subscribe wires every observable event (spec.md §6) except the
// once-per-tick SnapshotTaken to a colored terminal line.
func subscribe(bus *events.Bus) {
	bus.OnPeerJoined(func(e events.PeerJoined) {
		fmt.Println(color.GreenString("peer joined: %s (role=%s)", e.Peer, e.Role))
	})
	bus.OnPeerLeft(func(e events.PeerLeft) {
		fmt.Println(color.YellowString("peer left: %s", e.Peer))
	})
	bus.OnEntityAccepted(func(e events.EntityAccepted) {
		fmt.Println(color.WhiteString("entity accepted: %s v%d", e.Entity, e.Version))
	})
	bus.OnConflictResolved(func(e events.ConflictResolved) {
		fmt.Println(color.MagentaString("conflict resolved: %s winner=%s policy=%s",
			e.Report.EntityID, e.Report.Winner, e.Report.Policy))
	})
	bus.OnReconciliation(func(e events.Reconciliation) {
		fmt.Println(color.BlueString("reconciliation: %s full_resync=%v", e.Diff.Entity, e.Diff.FullResync))
	})
	bus.OnMessageTimeout(func(e events.MessageTimeout) {
		fmt.Println(color.RedString("message timeout: %s", e.MessageID))
	})
	bus.OnLockGranted(func(e events.LockGranted) {
		fmt.Println(color.GreenString("lock granted: %s -> %s", e.Entity, e.Peer))
	})
	bus.OnLockDenied(func(e events.LockDenied) {
		fmt.Println(color.YellowString("lock denied: %s holder=%s", e.Entity, e.Holder))
	})
	bus.OnRollbackApplied(func(e events.RollbackApplied) {
		fmt.Println(color.MagentaString("rollback applied: tick=%d entities=%v", e.Tick, e.Entities))
	})
}
