package publisher

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/zerotier-like/controlplane/pkg/model"
)

func decodeForTest(t *testing.T, data []byte) (source string, old, new []byte) {
	for len(data) > 0 {
		num, _, n := protowire.ConsumeTag(data)
		require.GreaterOrEqual(t, n, 0)
		data = data[n:]
		switch num {
		case fieldChangeSource:
			v, n := protowire.ConsumeString(data)
			require.GreaterOrEqual(t, n, 0)
			source = v
			data = data[n:]
		case fieldOld:
			v, n := protowire.ConsumeBytes(data)
			require.GreaterOrEqual(t, n, 0)
			old = append([]byte(nil), v...)
			data = data[n:]
		case fieldNew:
			v, n := protowire.ConsumeBytes(data)
			require.GreaterOrEqual(t, n, 0)
			new = append([]byte(nil), v...)
			data = data[n:]
		}
	}
	return
}

func TestEncodeChangeInsertHasNoOldField(t *testing.T) {
	n := &model.NetworkRecord{ID: "nw1", Name: "n"}
	data, err := encodeChange((*model.NetworkRecord)(nil), n)
	require.NoError(t, err)

	source, old, new := decodeForTest(t, data)
	require.Equal(t, "controller", source)
	require.Empty(t, old)

	var decoded model.NetworkRecord
	require.NoError(t, json.Unmarshal(new, &decoded))
	require.Equal(t, "nw1", decoded.ID)
}

func TestEncodeChangeDeleteHasNoNewField(t *testing.T) {
	m := &model.MemberRecord{NetworkID: "nw1", ID: "m1"}
	data, err := encodeChange(m, (*model.MemberRecord)(nil))
	require.NoError(t, err)

	_, old, new := decodeForTest(t, data)
	require.Empty(t, new)

	var decoded model.MemberRecord
	require.NoError(t, json.Unmarshal(old, &decoded))
	require.Equal(t, "m1", decoded.ID)
}

func TestIsNilRecordHandlesTypedNils(t *testing.T) {
	require.True(t, isNilRecord((*model.NetworkRecord)(nil)))
	require.True(t, isNilRecord((*model.MemberRecord)(nil)))
	require.False(t, isNilRecord(&model.NetworkRecord{}))
}
