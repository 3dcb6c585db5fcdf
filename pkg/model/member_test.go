package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemberNormalizeDefaultsIPAssignmentsToEmptySlice(t *testing.T) {
	m := &MemberRecord{NetworkID: "nw1", ID: "m1"}
	m.Normalize()
	require.NotNil(t, m.IPAssignments)
	require.Empty(t, m.IPAssignments)
}

func TestMemberNormalizeLeavesExistingIPAssignmentsAlone(t *testing.T) {
	m := &MemberRecord{NetworkID: "nw1", ID: "m1", IPAssignments: []string{"10.0.0.5"}}
	m.Normalize()
	require.Equal(t, []string{"10.0.0.5"}, m.IPAssignments)
}

func TestMemberEqualIgnoresRevision(t *testing.T) {
	a := MemberRecord{NetworkID: "nw1", ID: "m1", Authorized: true, Revision: 1}
	b := MemberRecord{NetworkID: "nw1", ID: "m1", Authorized: true, Revision: 5}
	require.True(t, a.Equal(b))
}

func TestMemberEqualCatchesAuthorizationFlip(t *testing.T) {
	a := MemberRecord{NetworkID: "nw1", ID: "m1", Authorized: true}
	b := MemberRecord{NetworkID: "nw1", ID: "m1", Authorized: false}
	require.False(t, a.Equal(b))
}

func TestMemberEqualComparesIPAssignmentsElementwise(t *testing.T) {
	a := MemberRecord{NetworkID: "nw1", ID: "m1", IPAssignments: []string{"10.0.0.1"}}
	b := MemberRecord{NetworkID: "nw1", ID: "m1", IPAssignments: []string{"10.0.0.1"}}
	require.True(t, a.Equal(b))

	b.IPAssignments = []string{"10.0.0.2"}
	require.False(t, a.Equal(b))
}

func TestMemberKeyIdentifiesByNetworkAndMemberID(t *testing.T) {
	m := MemberRecord{NetworkID: "nw1", ID: "m1"}
	require.Equal(t, MemberKey{NetworkID: "nw1", MemberID: "m1"}, m.Key())
}

func TestMemberStampCreatedIfZeroOnlySetsOnce(t *testing.T) {
	m := &MemberRecord{}
	first, err := time.Parse(time.RFC3339, "2026-08-01T00:00:00Z")
	require.NoError(t, err)
	m.StampCreatedIfZero(first)
	require.Equal(t, first.UnixMilli(), m.CreationTime)

	later, err := time.Parse(time.RFC3339, "2026-08-02T00:00:00Z")
	require.NoError(t, err)
	m.StampCreatedIfZero(later)
	require.Equal(t, first.UnixMilli(), m.CreationTime)
}
