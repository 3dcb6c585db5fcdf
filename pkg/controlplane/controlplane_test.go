package controlplane

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zerotier-like/controlplane/pkg/liveness"
	"github.com/zerotier-like/controlplane/pkg/model"
	"github.com/zerotier-like/controlplane/pkg/queue"
)

// newTestDB builds a façade with only the cache/queue/readiness machinery
// wired up, skipping New's store connection entirely. Every method
// exercised by these tests (Save*/Erase*/NodeIsOnline/Get*/readiness)
// never touches db.gdb or db.pool.
func newTestDB() *DB {
	return &DB{
		controllerID: "ctl1",
		networks:     make(map[string]model.NetworkRecord),
		members:      make(map[model.MemberKey]model.MemberRecord),
		queue:        queue.New(),
		liveness:     liveness.New(nil),
		readiness:    newReadinessGate(),
	}
}

func drainOne(t *testing.T, q *queue.Queue) model.CommitItem {
	t.Helper()
	item, ok := q.Get()
	require.True(t, ok)
	return item.(model.CommitItem)
}

func TestSaveNetworkFieldEqualIsNoOp(t *testing.T) {
	db := newTestDB()
	n := model.NetworkRecord{ID: "nw1", Name: "n1"}
	n.Normalize()
	db.networks["nw1"] = n

	require.False(t, db.SaveNetwork(n, true))
	require.Equal(t, 0, db.queue.Len())
}

func TestSaveNetworkBumpsRevisionOnTopOfCached(t *testing.T) {
	db := newTestDB()
	n := model.NetworkRecord{ID: "8056c2e21c24673d", Name: "old", Revision: 7}
	n.Normalize()
	db.networks[n.ID] = n

	updated := model.NetworkRecord{ID: "8056c2e21c24673d", Name: "new", Revision: 7}
	require.True(t, db.SaveNetwork(updated, true))

	item := drainOne(t, db.queue)
	require.Equal(t, model.ObjectNetwork, item.ObjType)
	require.Equal(t, uint64(8), item.Network.Revision)
	require.Equal(t, "new", item.Network.Name)
}

func TestSaveNetworkNewRecordStartsAtRevisionOne(t *testing.T) {
	db := newTestDB()
	require.True(t, db.SaveNetwork(model.NetworkRecord{ID: "nw1"}, true))
	item := drainOne(t, db.queue)
	require.Equal(t, uint64(1), item.Network.Revision)
}

func TestSaveMemberFieldEqualIsNoOp(t *testing.T) {
	db := newTestDB()
	m := model.MemberRecord{NetworkID: "nw1", ID: "m1"}
	m.Normalize()
	db.members[m.Key()] = m

	require.False(t, db.SaveMember(m, true))
	require.Equal(t, 0, db.queue.Len())
}

func TestEraseNetworkFiresSynchronousEventAndEnqueuesDelete(t *testing.T) {
	db := newTestDB()
	n := model.NetworkRecord{ID: "nw1", Name: "n1"}
	db.networks["nw1"] = n

	var captured model.ChangeEvent
	db.onChange = func(ev model.ChangeEvent) { captured = ev }

	db.readiness.raise(stateFullyReady)
	db.EraseNetwork("nw1")

	require.NotNil(t, captured.NetworkOld)
	require.Equal(t, "nw1", captured.NetworkOld.ID)
	require.Nil(t, captured.NetworkNew)

	item := drainOne(t, db.queue)
	require.Equal(t, model.ObjectDeleteNetwork, item.ObjType)
	require.Equal(t, "nw1", item.NetworkID)

	// The cache entry is untouched until the commit worker removes it.
	_, stillCached := db.GetNetwork("nw1")
	require.True(t, stillCached)
}

func TestEraseMemberOnUnknownMemberStillEnqueuesWithNilOld(t *testing.T) {
	db := newTestDB()
	db.readiness.raise(stateFullyReady)

	var captured model.ChangeEvent
	db.onChange = func(ev model.ChangeEvent) { captured = ev }

	db.EraseMember("nw1", "ghost")
	require.Nil(t, captured.MemberOld)
	require.Nil(t, captured.MemberNew)

	item := drainOne(t, db.queue)
	require.Equal(t, model.ObjectDeleteMember, item.ObjType)
}

func TestNodeIsOnlineFeedsLivenessAggregator(t *testing.T) {
	db := newTestDB()
	db.NodeIsOnline("nw1", "m1", "1.2.3.4", "linux", "amd64")
	require.Equal(t, 1, db.liveness.Len())
}

func TestReadinessGateBlocksUntilFullyReady(t *testing.T) {
	db := newTestDB()
	require.False(t, db.IsReady())

	done := make(chan struct{})
	go func() {
		db.WaitForReady()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("WaitForReady returned before readiness reached FULLY_READY")
	case <-time.After(50 * time.Millisecond):
	}

	db.readiness.raise(stateNetworksLoaded)
	select {
	case <-done:
		t.Fatal("WaitForReady returned after only NETWORKS_LOADED")
	case <-time.After(50 * time.Millisecond):
	}

	db.readiness.raise(stateFullyReady)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("WaitForReady did not return after FULLY_READY")
	}
	require.True(t, db.IsReady())
}

func TestReadinessGateRegressionIsNoOp(t *testing.T) {
	g := newReadinessGate()
	g.raise(stateFullyReady)
	g.raise(stateNetworksLoaded)
	require.True(t, g.isReady())
}
