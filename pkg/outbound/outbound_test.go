package outbound

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zerotier-like/controlplane/pkg/model"
)

func TestNewReturnsNilWithoutTaskQueue(t *testing.T) {
	require.Nil(t, New("http", "localhost", "7233", ""))
}

func TestNewReturnsNilWithoutHost(t *testing.T) {
	require.Nil(t, New("http", "", "7233", "smee"))
}

func TestNotifyPostsExpectedPayload(t *testing.T) {
	received := make(chan newMemberPayload, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p newMemberPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&p))
		received <- p
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	host, port, _ := strings.Cut(u.Host, ":")

	h := New("http", host, port, "smee-queue")
	require.NotNil(t, h)
	h.url = srv.URL

	h.Notify(model.MemberRecord{NetworkID: "nw1", ID: "m1"})

	select {
	case p := <-received:
		require.Equal(t, "smee-queue", p.TaskQueue)
		require.Equal(t, "nw1", p.NetworkID)
		require.Equal(t, "m1", p.MemberID)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for outbound post")
	}
}

func TestNotifyOnNilHookIsNoOp(t *testing.T) {
	var h *Hook
	require.NotPanics(t, func() {
		h.Notify(model.MemberRecord{NetworkID: "nw1", ID: "m1"})
	})
}
