// Package leader supplies the leadership checks that gate leader-only
// operations such as destructive directory cleanup.
package leader

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/struggle121224/sofa-registry/internal/metrics"
)

// Oracle reports whether the local process is currently the stable cluster
// leader. "Stable" means the leadership has held long enough that a
// just-elected leader does not immediately run destructive work against a
// directory it has not finished warming up.
type Oracle interface {
	IsStableLeader() bool
}

// Static is a fixed oracle for tests and single-node deployments.
type Static struct {
	leader atomic.Bool
}

func NewStatic(leader bool) *Static {
	s := &Static{}
	s.leader.Store(leader)
	return s
}

func (s *Static) SetLeader(leader bool) { s.leader.Store(leader) }

func (s *Static) IsStableLeader() bool { return s.leader.Load() }

// LeaseElector tracks leadership transitions reported by the consensus
// layer and applies a stability margin before IsStableLeader turns true.
type LeaseElector struct {
	clk    clock.Clock
	margin time.Duration

	mu          sync.Mutex
	leader      bool
	leaderSince time.Time
}

func NewLeaseElector(margin time.Duration) *LeaseElector {
	return NewLeaseElectorWithClock(margin, clock.New())
}

func NewLeaseElectorWithClock(margin time.Duration, clk clock.Clock) *LeaseElector {
	return &LeaseElector{clk: clk, margin: margin}
}

// BecomeLeader records a leadership grant. The stability margin starts
// counting from the first grant of an unbroken term.
func (e *LeaseElector) BecomeLeader() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.leader {
		e.leader = true
		e.leaderSince = e.clk.Now()
	}
	metrics.StableLeader.Set(boolGauge(e.stableLocked()))
}

// Resign records loss of leadership.
func (e *LeaseElector) Resign() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.leader = false
	metrics.StableLeader.Set(0)
}

func (e *LeaseElector) IsStableLeader() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	stable := e.stableLocked()
	metrics.StableLeader.Set(boolGauge(stable))
	return stable
}

func (e *LeaseElector) stableLocked() bool {
	return e.leader && e.clk.Now().Sub(e.leaderSince) >= e.margin
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
