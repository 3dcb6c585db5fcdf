package statussink

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPendingBufferAddCollapsesByKey(t *testing.T) {
	b := newPendingBuffer()
	b.add("nw1", "m1", "linux", "amd64", "1.0", "1.2.3.4", 100)
	b.add("nw1", "m1", "linux", "amd64", "1.1", "1.2.3.4", 200)
	require.Equal(t, 1, b.len())

	entries := b.swap()
	require.Len(t, entries, 1)
	require.Equal(t, "1.1", entries[0].Version)
	require.Equal(t, int64(200), entries[0].LastSeen)
}

func TestPendingBufferSwapEmptiesBuffer(t *testing.T) {
	b := newPendingBuffer()
	b.add("nw1", "m1", "linux", "amd64", "1.0", "1.2.3.4", 100)
	b.add("nw1", "m2", "linux", "amd64", "1.0", "1.2.3.5", 100)

	first := b.swap()
	require.Len(t, first, 2)
	require.Equal(t, 0, b.len())

	second := b.swap()
	require.Empty(t, second)
}

func TestRedisKeyBuildersAreHashTagged(t *testing.T) {
	r := NewRedis(nil, "ctrl1")
	require.Equal(t, "{ctrl1}:nodes-online", r.onlineKey())
	require.Equal(t, "{ctrl1}:nodes-online:nw1", r.networkKey("nw1"))
	require.Equal(t, "{ctrl1}:active-networks", r.activeNetworksKey())
	require.Equal(t, "{ctrl1}:member:nw1:m1", r.memberKey("nw1", "m1"))
}

func TestRowKeyFormat(t *testing.T) {
	require.Equal(t, "nw1#m1", rowKey("nw1", "m1"))
}

func TestIndexAfterColon(t *testing.T) {
	require.Equal(t, 5, indexAfterColon("abcd:efgh"))
	require.Equal(t, -1, indexAfterColon("no-colon"))
}
