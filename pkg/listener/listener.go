// Package listener implements the three interchangeable notification
// transports described in spec.md §4.6. Each variant owns one or more
// background consumers that decode a {old, new} change payload and
// dispatch it into the façade's commit path, so externally-originated
// changes flow through the same write-behind pipeline as local ones.
package listener

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/zerotier-like/controlplane/pkg/model"
)

// Listener is the common interface all three notification-transport
// variants satisfy.
type Listener interface {
	// Start launches the background consumer(s) and returns once they are
	// running; it does not block for the lifetime of the listener.
	Start() error
	// Stop tells every consumer to exit and waits for them to do so.
	Stop()
}

// Dispatcher is the subset of the façade's contract a listener needs.
// pkg/controlplane's DB satisfies this without pkg/listener importing it,
// avoiding an import cycle.
type Dispatcher interface {
	SaveNetwork(n model.NetworkRecord, notify bool) bool
	SaveMember(m model.MemberRecord, notify bool) bool
	EraseNetwork(id string)
	EraseMember(networkID, memberID string)
}

// ObjectKind tells a listener consumer which record shape to decode a raw
// payload into. Channel/stream listeners are configured with one consumer
// per kind (mirroring one LISTEN channel or stream per object type);
// pub/sub distinguishes NetworkChange from MemberChange messages directly.
type ObjectKind int

const (
	KindNetwork ObjectKind = iota
	KindMember
)

// jsonChangePayload is the {old, new} envelope used by the channel and
// stream transports. Either side may be JSON null, per spec.md §4.6.
type jsonChangePayload struct {
	Old json.RawMessage `json:"old"`
	New json.RawMessage `json:"new"`
}

func isJSONNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

// dispatchJSON decodes one {old, new} JSON envelope for the given kind and
// applies spec.md §4.6's dispatch rule:
//
//	old && new  -> save(new, notify=true)
//	!old && new -> save(new, notify=true)
//	old && !new -> erase
//	!old && !new -> no-op
func dispatchJSON(d Dispatcher, kind ObjectKind, raw []byte) error {
	var payload jsonChangePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("listener: malformed payload: %w", err)
	}

	hasOld := !isJSONNull(payload.Old)
	hasNew := !isJSONNull(payload.New)

	switch {
	case !hasOld && !hasNew:
		return nil
	case hasNew:
		return dispatchSave(d, kind, payload.New)
	default:
		return dispatchErase(d, kind, payload.Old)
	}
}

func dispatchSave(d Dispatcher, kind ObjectKind, raw json.RawMessage) error {
	switch kind {
	case KindNetwork:
		var n model.NetworkRecord
		if err := json.Unmarshal(raw, &n); err != nil {
			return fmt.Errorf("listener: malformed network payload: %w", err)
		}
		d.SaveNetwork(n, true)
	case KindMember:
		var m model.MemberRecord
		if err := json.Unmarshal(raw, &m); err != nil {
			return fmt.Errorf("listener: malformed member payload: %w", err)
		}
		d.SaveMember(m, true)
	default:
		return fmt.Errorf("listener: unknown object kind %d", kind)
	}
	return nil
}

func dispatchErase(d Dispatcher, kind ObjectKind, raw json.RawMessage) error {
	switch kind {
	case KindNetwork:
		var n model.NetworkRecord
		if err := json.Unmarshal(raw, &n); err != nil {
			return fmt.Errorf("listener: malformed network payload: %w", err)
		}
		if n.ID == "" {
			return fmt.Errorf("listener: delete payload missing network id")
		}
		d.EraseNetwork(n.ID)
	case KindMember:
		var m model.MemberRecord
		if err := json.Unmarshal(raw, &m); err != nil {
			return fmt.Errorf("listener: malformed member payload: %w", err)
		}
		if m.NetworkID == "" || m.ID == "" {
			return fmt.Errorf("listener: delete payload missing nwid/id")
		}
		d.EraseMember(m.NetworkID, m.ID)
	default:
		return fmt.Errorf("listener: unknown object kind %d", kind)
	}
	return nil
}

func logDispatchErr(source, channel string, err error) {
	log.Printf("listener/%s: dispatch on %q failed: %v", source, channel, err)
}
