// Package statussink implements the three interchangeable batched
// liveness-write backends described in spec.md §4.5: relational,
// key-value, and wide-column.
package statussink

import (
	"sync"

	"github.com/zerotier-like/controlplane/pkg/model"
)

// Sink is the common interface all three status-sink variants satisfy.
type Sink interface {
	// UpdateNodeStatus enqueues one liveness observation under a mutex.
	// O(1); never touches the backing store.
	UpdateNodeStatus(networkID, memberID, os, arch, version, address string, lastSeen int64)

	// QueueLength reports how many entries are currently pending.
	QueueLength() int

	// WritePending atomically swaps out the pending buffer and flushes
	// it to the backing store.
	WritePending() error
}

// pendingBuffer is the mutex-guarded accumulation buffer shared by all
// three variants; spec.md §4.5 describes each sink's enqueue path as "O(1)
// under a mutex" with flush doing an atomic swap, so the bookkeeping is
// factored out here and each backend only implements the flush itself.
type pendingBuffer struct {
	mu      sync.Mutex
	entries map[model.LivenessKey]model.PendingStatusEntry
}

func newPendingBuffer() *pendingBuffer {
	return &pendingBuffer{entries: make(map[model.LivenessKey]model.PendingStatusEntry)}
}

func (b *pendingBuffer) add(networkID, memberID, os, arch, version, address string, lastSeen int64) {
	key := model.LivenessKey{NetworkID: networkID, MemberID: memberID}
	b.mu.Lock()
	b.entries[key] = model.PendingStatusEntry{
		NetworkID: networkID,
		MemberID:  memberID,
		OS:        os,
		Arch:      arch,
		Version:   version,
		Address:   address,
		LastSeen:  lastSeen,
	}
	b.mu.Unlock()
}

func (b *pendingBuffer) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// swap atomically replaces the buffer with a fresh empty one and returns
// everything that had accumulated.
func (b *pendingBuffer) swap() []model.PendingStatusEntry {
	b.mu.Lock()
	entries := b.entries
	b.entries = make(map[model.LivenessKey]model.PendingStatusEntry)
	b.mu.Unlock()

	out := make([]model.PendingStatusEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, e)
	}
	return out
}
