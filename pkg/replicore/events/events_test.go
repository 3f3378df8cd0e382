package events

import (
	"testing"

	"github.com/agobrik/unity-sim-packs-sub001/pkg/replicore/types"
)

func TestBus_DispatchesToSubscribersInOrder(t *testing.T) {
	bus := NewBus()
	var order []string
	bus.OnPeerJoined(func(e PeerJoined) { order = append(order, "first:"+string(e.Peer)) })
	bus.OnPeerJoined(func(e PeerJoined) { order = append(order, "second:"+string(e.Peer)) })

	bus.EmitPeerJoined(PeerJoined{Peer: "host", Role: types.RoleHost})

	if len(order) != 2 || order[0] != "first:host" || order[1] != "second:host" {
		t.Fatalf("unexpected dispatch order: %v", order)
	}
}

func TestBus_UnrelatedEventKindsDoNotCrossFire(t *testing.T) {
	bus := NewBus()
	fired := false
	bus.OnPeerLeft(func(PeerLeft) { fired = true })

	bus.EmitPeerJoined(PeerJoined{Peer: "host"})

	if fired {
		t.Fatal("expected PeerLeft subscriber not to fire for a PeerJoined event")
	}
}

func TestBus_RollbackAppliedCarriesEntities(t *testing.T) {
	bus := NewBus()
	var got RollbackApplied
	bus.OnRollbackApplied(func(e RollbackApplied) { got = e })

	bus.EmitRollbackApplied(RollbackApplied{Tick: 100, Entities: []types.EntityID{"e1", "e2"}})

	if got.Tick != 100 || len(got.Entities) != 2 {
		t.Fatalf("unexpected event: %+v", got)
	}
}
