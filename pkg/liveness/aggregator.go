// Package liveness implements the process-wide "last seen" aggregator:
// an O(1) write path feeding a periodic, swap-not-copy flush.
package liveness

import (
	"sync"
	"time"

	"github.com/zerotier-like/controlplane/pkg/model"
)

// Aggregator collapses a high-rate stream of per-member online reports
// into the single most recent report per (network, member), ready to be
// drained on a timer.
type Aggregator struct {
	mu      sync.Mutex
	reports map[model.LivenessKey]model.LivenessReport
	now     func() time.Time
}

// New returns an empty aggregator. nowFn defaults to time.Now; tests may
// override it for deterministic timestamps.
func New(nowFn func() time.Time) *Aggregator {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Aggregator{
		reports: make(map[model.LivenessKey]model.LivenessReport),
		now:     nowFn,
	}
}

// Report overwrites the report for (networkID, memberID) with a fresh
// LastSeen timestamp taken at call time. O(1) under a single mutex.
func (a *Aggregator) Report(networkID, memberID, address, os, arch string) {
	key := model.LivenessKey{NetworkID: networkID, MemberID: memberID}
	report := model.LivenessReport{
		NetworkID:        networkID,
		MemberID:         memberID,
		LastSeen:         a.now().UnixMilli(),
		LastPhysicalAddr: address,
		OS:               os,
		Arch:             arch,
	}
	a.mu.Lock()
	a.reports[key] = report
	a.mu.Unlock()
}

// Swap atomically replaces the live map with a fresh empty one and returns
// everything that had accumulated. Calls to Report that happen-before the
// swap are guaranteed to be included; calls that happen-after land in the
// next swap's result.
func (a *Aggregator) Swap() map[model.LivenessKey]model.LivenessReport {
	a.mu.Lock()
	out := a.reports
	a.reports = make(map[model.LivenessKey]model.LivenessReport)
	a.mu.Unlock()
	return out
}

// Len reports the number of distinct (network, member) pairs currently
// pending, for diagnostics.
func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.reports)
}
