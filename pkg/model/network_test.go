package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNetworkNormalizeDefaultsMTUAndMulticastLimit(t *testing.T) {
	n := &NetworkRecord{ID: "nw1"}
	n.Normalize()
	require.Equal(t, 2800, n.MTU)
	require.Equal(t, 64, n.MulticastLimit)
}

func TestNetworkNormalizeLeavesExplicitValuesAlone(t *testing.T) {
	n := &NetworkRecord{ID: "nw1", MTU: 1500, MulticastLimit: 8}
	n.Normalize()
	require.Equal(t, 1500, n.MTU)
	require.Equal(t, 8, n.MulticastLimit)
}

func TestNetworkNormalizeDefaultsAssignModeWhenAllUnset(t *testing.T) {
	n := &NetworkRecord{ID: "nw1"}
	n.Normalize()
	require.True(t, n.V4AssignMode.ZT)
	require.True(t, n.V6AssignMode.ZT)
	require.True(t, n.V6AssignMode.Plane6)
	require.False(t, n.V6AssignMode.RFC4193)
}

func TestNetworkNormalizeLeavesExplicitAssignModeAlone(t *testing.T) {
	n := &NetworkRecord{ID: "nw1", V6AssignMode: V6AssignMode{RFC4193: true}}
	n.Normalize()
	require.False(t, n.V4AssignMode.ZT)
	require.False(t, n.V6AssignMode.ZT)
	require.True(t, n.V6AssignMode.RFC4193)
}

func TestNetworkEqualIgnoresRevision(t *testing.T) {
	a := NetworkRecord{ID: "nw1", Name: "n", Revision: 1}
	b := NetworkRecord{ID: "nw1", Name: "n", Revision: 99}
	require.True(t, a.Equal(b))
}

func TestNetworkEqualComparesByteSliceFieldsByContent(t *testing.T) {
	a := NetworkRecord{ID: "nw1", Rules: []byte(`[{"type":"ACTION_ACCEPT"}]`)}
	b := NetworkRecord{ID: "nw1", Rules: []byte(`[{"type":"ACTION_ACCEPT"}]`)}
	require.True(t, a.Equal(b))

	b.Rules = []byte(`[{"type":"ACTION_DROP"}]`)
	require.False(t, a.Equal(b))
}

func TestNetworkEqualComparesAssignmentPoolOrderAndLength(t *testing.T) {
	a := NetworkRecord{ID: "nw1", AssignmentPool: []string{"10.0.0.1", "10.0.0.2"}}
	b := NetworkRecord{ID: "nw1", AssignmentPool: []string{"10.0.0.1", "10.0.0.2"}}
	require.True(t, a.Equal(b))

	b.AssignmentPool = []string{"10.0.0.2", "10.0.0.1"}
	require.False(t, a.Equal(b))

	b.AssignmentPool = []string{"10.0.0.1"}
	require.False(t, a.Equal(b))
}

func TestNetworkTouchStampsLastModified(t *testing.T) {
	n := &NetworkRecord{}
	now, err := time.Parse(time.RFC3339, "2026-08-03T12:00:00Z")
	require.NoError(t, err)
	n.Touch(now)
	require.Equal(t, now.UnixMilli(), n.LastModified)
}
