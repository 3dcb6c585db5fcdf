// Package outbound implements the best-effort "new member joined" side
// channel from spec.md §4.8: when the commit worker detects a member
// insertion, it calls Notify on an opaque handle whose contract is
// fire-and-forget — failures are invisible to the commit path.
package outbound

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/zerotier-like/controlplane/pkg/model"
)

// Hook posts a workflow-trigger request to a Temporal-fronted endpoint,
// addressed by a task queue name, whenever a brand-new member is
// committed. Modeled on pkg/agent/http.go's postJSON: a plain
// *http.Client, JSON body, errors logged and swallowed.
type Hook struct {
	client    *http.Client
	url       string
	taskQueue string
}

// New builds a Hook from the Temporal scheme/host/port and the task queue
// name spec.md §6 wires in via ZT_TEMPORAL_* / ZT_SMEE_TASK_QUEUE. Returns
// nil if taskQueue is empty, meaning the hook is not configured and the
// façade should skip calling Notify entirely.
func New(scheme, host, port, taskQueue string) *Hook {
	if taskQueue == "" || host == "" {
		return nil
	}
	return &Hook{
		client:    &http.Client{Timeout: 5 * time.Second},
		url:       fmt.Sprintf("%s://%s:%s/workflows/new-member/trigger", scheme, host, port),
		taskQueue: taskQueue,
	}
}

type newMemberPayload struct {
	TaskQueue string `json:"taskQueue"`
	NetworkID string `json:"networkId"`
	MemberID  string `json:"memberId"`
}

// Notify fires a best-effort POST in its own goroutine and never blocks
// the caller; per spec.md §4.8 its failures must be invisible to the
// commit path.
func (h *Hook) Notify(member model.MemberRecord) {
	if h == nil {
		return
	}
	go h.post(member)
}

func (h *Hook) post(member model.MemberRecord) {
	body, err := json.Marshal(newMemberPayload{
		TaskQueue: h.taskQueue,
		NetworkID: member.NetworkID,
		MemberID:  member.ID,
	})
	if err != nil {
		log.Printf("outbound: marshal failed for %s/%s: %v", member.NetworkID, member.ID, err)
		return
	}

	req, err := http.NewRequest(http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		log.Printf("outbound: build request failed for %s/%s: %v", member.NetworkID, member.ID, err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		log.Printf("outbound: post failed for %s/%s: %v", member.NetworkID, member.ID, err)
		return
	}
	_ = resp.Body.Close()
	if resp.StatusCode >= 300 {
		log.Printf("outbound: post for %s/%s got status %d", member.NetworkID, member.ID, resp.StatusCode)
	}
}
