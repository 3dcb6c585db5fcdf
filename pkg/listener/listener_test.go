package listener

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zerotier-like/controlplane/pkg/model"
)

// fakeDispatcher records calls and, for SaveNetwork/SaveMember, mimics the
// façade's field-equality short-circuit: a second save of an
// already-cached, field-equal record is a no-op that returns false.
type fakeDispatcher struct {
	networks map[string]model.NetworkRecord
	members  map[model.MemberKey]model.MemberRecord

	savedNetworks []model.NetworkRecord
	savedMembers  []model.MemberRecord
	erasedNetworks []string
	erasedMembers  []model.MemberKey
}

func newFakeDispatcher() *fakeDispatcher {
	return &fakeDispatcher{
		networks: map[string]model.NetworkRecord{},
		members:  map[model.MemberKey]model.MemberRecord{},
	}
}

func (f *fakeDispatcher) SaveNetwork(n model.NetworkRecord, notify bool) bool {
	if cached, ok := f.networks[n.ID]; ok && cached.Equal(n) {
		return false
	}
	f.networks[n.ID] = n
	f.savedNetworks = append(f.savedNetworks, n)
	return true
}

func (f *fakeDispatcher) SaveMember(m model.MemberRecord, notify bool) bool {
	key := m.Key()
	if cached, ok := f.members[key]; ok && cached.Equal(m) {
		return false
	}
	f.members[key] = m
	f.savedMembers = append(f.savedMembers, m)
	return true
}

func (f *fakeDispatcher) EraseNetwork(id string) {
	delete(f.networks, id)
	f.erasedNetworks = append(f.erasedNetworks, id)
}

func (f *fakeDispatcher) EraseMember(networkID, memberID string) {
	key := model.MemberKey{NetworkID: networkID, MemberID: memberID}
	delete(f.members, key)
	f.erasedMembers = append(f.erasedMembers, key)
}

func TestDispatchJSONBothNullIsNoOp(t *testing.T) {
	d := newFakeDispatcher()
	err := dispatchJSON(d, KindNetwork, []byte(`{"old":null,"new":null}`))
	require.NoError(t, err)
	require.Empty(t, d.savedNetworks)
	require.Empty(t, d.erasedNetworks)
}

func TestDispatchJSONInsertRoutesToSave(t *testing.T) {
	d := newFakeDispatcher()
	payload := []byte(`{"old":null,"new":{"id":"8056c2e21c24673d","name":"n1"}}`)
	require.NoError(t, dispatchJSON(d, KindNetwork, payload))
	require.Len(t, d.savedNetworks, 1)
	require.Equal(t, "8056c2e21c24673d", d.savedNetworks[0].ID)
}

func TestDispatchJSONUpdateRoutesToSave(t *testing.T) {
	d := newFakeDispatcher()
	payload := []byte(`{"old":{"id":"8056c2e21c24673d","name":"old"},"new":{"id":"8056c2e21c24673d","name":"new"}}`)
	require.NoError(t, dispatchJSON(d, KindNetwork, payload))
	require.Len(t, d.savedNetworks, 1)
	require.Equal(t, "new", d.savedNetworks[0].Name)
}

func TestDispatchJSONDeleteRoutesToErase(t *testing.T) {
	d := newFakeDispatcher()
	payload := []byte(`{"old":{"nwid":"8056c2e21c24673d","id":"abc123"},"new":null}`)
	require.NoError(t, dispatchJSON(d, KindMember, payload))
	require.Equal(t, []model.MemberKey{{NetworkID: "8056c2e21c24673d", MemberID: "abc123"}}, d.erasedMembers)
}

func TestDispatchJSONMalformedPayloadErrors(t *testing.T) {
	d := newFakeDispatcher()
	err := dispatchJSON(d, KindNetwork, []byte(`not json`))
	require.Error(t, err)
}

// TestChannelRoundTripIsNoOpAfterOneDelivery covers the Open Question from
// spec.md §9: a channel listener whose payload was generated by the
// save it is about to replay must converge to a no-op, since dispatching
// the committed record back into SaveNetwork hits the field-equality
// short-circuit.
func TestChannelRoundTripIsNoOpAfterOneDelivery(t *testing.T) {
	d := newFakeDispatcher()
	n := model.NetworkRecord{ID: "8056c2e21c24673d", Name: "n1", Revision: 7}
	n.Normalize()
	d.SaveNetwork(n, true)
	require.Len(t, d.savedNetworks, 1)

	newRaw, err := json.Marshal(n)
	require.NoError(t, err)
	payload, err := json.Marshal(jsonChangePayload{New: newRaw})
	require.NoError(t, err)
	require.NoError(t, dispatchJSON(d, KindNetwork, payload))

	// The replayed payload matches the cached record field-wise, so the
	// second SaveNetwork call must not have appended another entry.
	require.Len(t, d.savedNetworks, 1)
}

func TestPBChangeMarshalUnmarshalRoundTrip(t *testing.T) {
	msg := pbChangeMessage{
		source: changeSourceController,
		old:    []byte(`{"id":"a"}`),
		new:    []byte(`{"id":"a","name":"n"}`),
	}
	encoded := marshalPBChange(msg)

	decoded, err := unmarshalPBChange(encoded)
	require.NoError(t, err)
	require.Equal(t, msg.source, decoded.source)
	require.Equal(t, msg.old, decoded.old)
	require.Equal(t, msg.new, decoded.new)
}

func TestPBChangeMarshalUnmarshalOmitsAbsentSides(t *testing.T) {
	msg := pbChangeMessage{source: changeSourceCV2, new: []byte(`{"id":"a"}`)}
	decoded, err := unmarshalPBChange(marshalPBChange(msg))
	require.NoError(t, err)
	require.Equal(t, changeSourceCV2, decoded.source)
	require.Empty(t, decoded.old)
	require.Equal(t, msg.new, decoded.new)
}
