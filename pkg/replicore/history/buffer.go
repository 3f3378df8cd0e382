// Package history implements the History Buffer (spec.md §4.4): a
// bounded ring of R past entity snapshots indexed by tick number,
// supporting rollback. Grounded on the teacher's bounded-channel
// buffering idiom (core/transport.go's `producer chan types.Message,
// 100`), generalized to a fixed-length ring of frames.
package history

import (
	"github.com/agobrik/unity-sim-packs-sub001/pkg/replicore/types"
)

type frame struct {
	tick    types.Tick
	changed map[types.EntityID]types.Payload
}

// Buffer is the bounded ring of HistoryFrames. Snapshots internally
// store only the entities that changed since the prior frame; Restore
// always materializes the full per-entity state at the requested tick
// by replaying deltas forward from the oldest retained full base.
type Buffer struct {
	capacity int
	baseTick types.Tick
	baseFull map[types.EntityID]types.Payload
	deltas   []frame // oldest first
	current  map[types.EntityID]types.Payload
	haveBase bool
}

// New builds a Buffer retaining at most R frames (default 60, one
// second at 60Hz).
func New(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = 60
	}
	return &Buffer{
		capacity: capacity,
		baseFull: make(map[types.EntityID]types.Payload),
		current:  make(map[types.EntityID]types.Payload),
	}
}

// Snapshot copies all entity payloads at end-of-tick into the ring,
// storing only what changed since the previous frame.
func (b *Buffer) Snapshot(tick types.Tick, full map[types.EntityID]types.Payload) {
	changed := make(map[types.EntityID]types.Payload)
	for id, payload := range full {
		prior, ok := b.current[id]
		if !ok || !prior.Equal(payload) {
			changed[id] = payload.Clone()
		}
	}
	// Entities present before but absent now are recorded as removed
	// via an empty payload marker so replay can drop them.
	for id := range b.current {
		if _, ok := full[id]; !ok {
			changed[id] = nil
		}
	}

	b.current = cloneFull(full)
	if !b.haveBase {
		b.baseTick = tick
		b.baseFull = cloneFull(full)
		b.haveBase = true
	}
	b.deltas = append(b.deltas, frame{tick: tick, changed: changed})

	for len(b.deltas) > b.capacity {
		oldest := b.deltas[0]
		b.deltas = b.deltas[1:]
		for id, payload := range oldest.changed {
			if payload == nil {
				delete(b.baseFull, id)
			} else {
				b.baseFull[id] = payload
			}
		}
		if len(b.deltas) > 0 {
			b.baseTick = b.deltas[0].tick
		} else {
			b.baseTick = oldest.tick
		}
	}
}

// Restore materializes the full per-entity state at tick, replaying
// deltas forward from the oldest retained base. It fails with
// HistoryExpired if tick is older than the oldest retained frame.
func (b *Buffer) Restore(tick types.Tick) (map[types.EntityID]types.Payload, error) {
	if !b.haveBase || tick < b.baseTick {
		return nil, &types.HistoryExpiredError{RequestedTick: tick, OldestTick: b.baseTick}
	}
	if len(b.deltas) > 0 && tick > b.deltas[len(b.deltas)-1].tick {
		// Requesting a tick not yet snapshotted; the most recent
		// materialized state is as close as we can get.
		tick = b.deltas[len(b.deltas)-1].tick
	}

	working := cloneFull(b.baseFull)
	for _, f := range b.deltas {
		if f.tick > tick {
			break
		}
		for id, payload := range f.changed {
			if payload == nil {
				delete(working, id)
			} else {
				working[id] = payload
			}
		}
	}
	return working, nil
}

// OldestTick returns the oldest retained tick.
func (b *Buffer) OldestTick() types.Tick { return b.baseTick }

// NewestTick returns the most recently snapshotted tick.
func (b *Buffer) NewestTick() types.Tick {
	if len(b.deltas) == 0 {
		return b.baseTick
	}
	return b.deltas[len(b.deltas)-1].tick
}

// Len returns the number of frames currently retained.
func (b *Buffer) Len() int { return len(b.deltas) }

func cloneFull(m map[types.EntityID]types.Payload) map[types.EntityID]types.Payload {
	out := make(map[types.EntityID]types.Payload, len(m))
	for id, p := range m {
		out[id] = p.Clone()
	}
	return out
}
