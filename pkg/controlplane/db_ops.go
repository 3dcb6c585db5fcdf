package controlplane

import (
	"errors"
	"log"

	"gorm.io/gorm"

	"github.com/zerotier-like/controlplane/pkg/model"
	"github.com/zerotier-like/controlplane/pkg/ssoauth"
)

// SaveNetwork compares the normalized record against the cached copy; a
// field-equal record is a no-op. Otherwise it bumps the revision on top of
// whatever is currently cached (ignoring any revision the caller supplied),
// enqueues a commit, and returns true without waiting for it.
func (db *DB) SaveNetwork(n model.NetworkRecord, notify bool) bool {
	n.Normalize()

	db.mu.RLock()
	cached, existed := db.networks[n.ID]
	db.mu.RUnlock()

	if existed && cached.Equal(n) {
		return false
	}

	if existed {
		n.Revision = cached.Revision + 1
	} else {
		n.Revision = 1
	}

	db.queue.Post(model.CommitItem{
		ObjType:         model.ObjectNetwork,
		Network:         &n,
		NotifyListeners: notify,
	})
	return true
}

// SaveMember is SaveNetwork's member analogue.
func (db *DB) SaveMember(m model.MemberRecord, notify bool) bool {
	m.Normalize()

	key := m.Key()
	db.mu.RLock()
	cached, existed := db.members[key]
	db.mu.RUnlock()

	if existed && cached.Equal(m) {
		return false
	}

	if existed {
		m.Revision = cached.Revision + 1
	} else {
		m.Revision = 1
	}

	db.queue.Post(model.CommitItem{
		ObjType:         model.ObjectMember,
		Member:          &m,
		NotifyListeners: notify,
	})
	return true
}

// EraseNetwork blocks on WaitForReady, enqueues a delete commit, and fires
// the listener event with an empty "new" synchronously — the cache entry
// itself is removed later by the commit worker once the store deletion
// succeeds.
func (db *DB) EraseNetwork(id string) {
	db.WaitForReady()

	db.mu.RLock()
	old, existed := db.networks[id]
	db.mu.RUnlock()

	db.queue.Post(model.CommitItem{
		ObjType:         model.ObjectDeleteNetwork,
		NetworkID:       id,
		NotifyListeners: true,
	})

	var oldPtr *model.NetworkRecord
	if existed {
		oldPtr = &old
	}
	db.fireChange(model.ChangeEvent{NetworkOld: oldPtr})
}

// EraseMember is EraseNetwork's member analogue.
func (db *DB) EraseMember(networkID, memberID string) {
	db.WaitForReady()

	key := model.MemberKey{NetworkID: networkID, MemberID: memberID}
	db.mu.RLock()
	old, existed := db.members[key]
	db.mu.RUnlock()

	db.queue.Post(model.CommitItem{
		ObjType:         model.ObjectDeleteMember,
		NetworkID:       networkID,
		MemberID:        memberID,
		NotifyListeners: true,
	})

	var oldPtr *model.MemberRecord
	if existed {
		oldPtr = &old
	}
	db.fireChange(model.ChangeEvent{MemberOld: oldPtr})
}

// NodeIsOnline upserts an in-memory liveness report under a single mutex.
// O(1); never touches the store.
func (db *DB) NodeIsOnline(networkID, memberID, address, os, arch string) {
	db.liveness.Report(networkID, memberID, address, os, arch)
}

// GetSSOAuthInfo is a best-effort read-through to the store for a
// short-lived SSO nonce; any internal failure yields an empty AuthInfo,
// never an error, per spec.md §7's SSOFailure kind.
func (db *DB) GetSSOAuthInfo(member model.MemberRecord, redirectURL string) model.AuthInfo {
	network, ok := db.GetNetwork(member.NetworkID)
	ssoEnabled := ok && network.SSOEnabled
	return ssoauth.Lookup(db.gdb, member, ssoEnabled, redirectURL)
}

// logStoreError implements spec.md §7's StoreTransient kind: log and
// continue, no retry.
func logStoreError(op string, err error) {
	if err == nil || errors.Is(err, gorm.ErrRecordNotFound) {
		return
	}
	log.Printf("controlplane: %s: %v", op, err)
}
