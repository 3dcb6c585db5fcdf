package liveness

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestReportCollapsesToMostRecentByArrivalOrder(t *testing.T) {
	a := New(time.Now)

	for i := 0; i < 5; i++ {
		a.Report("nw1", "m1", "1.2.3.4", "linux", "x86_64")
	}
	a.Report("nw1", "m1", "5.6.7.8", "linux", "x86_64")

	out := a.Swap()
	require.Len(t, out, 1)
	for _, r := range out {
		require.Equal(t, "5.6.7.8", r.LastPhysicalAddr)
	}
}

func TestSwapEmptiesAndIsolatesSubsequentReports(t *testing.T) {
	a := New(time.Now)
	a.Report("nw1", "m1", "1.2.3.4", "linux", "x86_64")

	first := a.Swap()
	require.Len(t, first, 1)
	require.Equal(t, 0, a.Len())

	a.Report("nw1", "m2", "9.9.9.9", "darwin", "arm64")
	second := a.Swap()
	require.Len(t, second, 1)
	for k := range second {
		require.Equal(t, "m2", k.MemberID)
	}
}

func TestMultipleMembersCollapseIndependently(t *testing.T) {
	a := New(time.Now)
	a.Report("nw1", "m1", "1.1.1.1", "linux", "x86_64")
	a.Report("nw1", "m2", "2.2.2.2", "linux", "x86_64")
	a.Report("nw2", "m1", "3.3.3.3", "linux", "x86_64")

	out := a.Swap()
	require.Len(t, out, 3)
}
