package controlplane

import "sync"

// readiness gate states, per spec.md §4.9's state machine.
const (
	stateUninitialized = 0
	stateNetworksLoaded = 1
	stateFullyReady     = 2
)

// readinessGate is the one-shot, lock-based barrier spec.md §5 calls for:
// an integer that only ever increases, plus a condition variable for
// blocking waiters.
type readinessGate struct {
	mu    sync.Mutex
	cond  *sync.Cond
	level int
}

func newReadinessGate() *readinessGate {
	g := &readinessGate{}
	g.cond = sync.NewCond(&g.mu)
	return g
}

// raise bumps the gate to at least the given level. Regression is not
// possible: raising to a lower level than the current one is a no-op.
func (g *readinessGate) raise(level int) {
	g.mu.Lock()
	if level > g.level {
		g.level = level
		g.cond.Broadcast()
	}
	g.mu.Unlock()
}

func (g *readinessGate) waitForReady() {
	g.mu.Lock()
	for g.level < stateFullyReady {
		g.cond.Wait()
	}
	g.mu.Unlock()
}

func (g *readinessGate) isReady() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.level >= stateFullyReady
}
