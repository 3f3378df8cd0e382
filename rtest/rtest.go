// Package rtest provides cluster-fixture helpers for exercising a
// multi-peer replicore session in tests, grounded on the teacher's
// test.UnityCluster (test/testing.go): a named set of peers sharing one
// transport, with timeout-guarded teardown and stack-trace-on-failure
// diagnostics.
package rtest

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/agobrik/unity-sim-packs-sub001/pkg/replicore"
	"github.com/agobrik/unity-sim-packs-sub001/pkg/replicore/definition"
	"github.com/agobrik/unity-sim-packs-sub001/pkg/replicore/transport"
	"github.com/agobrik/unity-sim-packs-sub001/pkg/replicore/types"
)

// Cluster is a set of Sessions wired together over one LoopbackHub,
// standing in for a real network during tests.
type Cluster struct {
	T        *testing.T
	Names    []types.PeerID
	Sessions []*replicore.Session
	hub      *transport.LoopbackHub

	mutex sync.Mutex
	index int
}

// NewCluster builds size Sessions named prefix-0..prefix-(size-1), all
// sharing cfg and one in-process transport hub. No join handshake is
// sent, so no session has any other peer in its registry yet.
func NewCluster(t *testing.T, size int, prefix string, cfg replicore.Config) *Cluster {
	hub := transport.NewLoopbackHub()
	logger := definition.NewDefaultLogger()

	cluster := &Cluster{T: t, hub: hub}
	for i := 0; i < size; i++ {
		id := types.PeerID(fmt.Sprintf("%s-%d", prefix, i))
		tp := hub.NewTransport(id, logger)
		session := replicore.New(id, cfg, tp, logger)
		cluster.Names = append(cluster.Names, id)
		cluster.Sessions = append(cluster.Sessions, session)
	}
	return cluster
}

// Start runs every Session's tick loop against ctx.
func (c *Cluster) Start(ctx context.Context) {
	for _, s := range c.Sessions {
		s.Run(ctx)
	}
}

// Next round-robins through the cluster's sessions, mirroring the
// teacher's UnityCluster.Next client-routing helper.
func (c *Cluster) Next() *replicore.Session {
	c.mutex.Lock()
	defer func() {
		c.index++
		c.mutex.Unlock()
	}()
	if c.index >= len(c.Sessions) {
		c.index = 0
	}
	return c.Sessions[c.index]
}

// Off stops every Session in the cluster.
func (c *Cluster) Off() {
	group := sync.WaitGroup{}
	for _, s := range c.Sessions {
		group.Add(1)
		go func(s *replicore.Session) {
			defer group.Done()
			s.Stop()
		}(s)
	}
	group.Wait()
}

// PrintStackTrace dumps every goroutine's stack to t, used when a
// timeout-guarded teardown fails to complete in time.
func PrintStackTrace(t *testing.T) {
	buf := make([]byte, 1<<16)
	n := runtime.Stack(buf, true)
	t.Errorf("%s", buf[:n])
}

// WaitOrTimeout runs cb in a goroutine and reports whether it completed
// within duration.
func WaitOrTimeout(cb func(), duration time.Duration) bool {
	done := make(chan struct{})
	go func() {
		cb()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(duration):
		return false
	}
}
