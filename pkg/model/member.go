package model

import "time"

// VersionTriplet is a member's reported ZeroTier software version plus
// the protocol version it speaks.
type VersionTriplet struct {
	Major    int `json:"vMajor"`
	Minor    int `json:"vMinor"`
	Revision int `json:"vRev"`
	Protocol int `json:"vProto"`
}

// MemberRecord is one (network, device) relationship.
type MemberRecord struct {
	NetworkID string `json:"nwid"`
	ID        string `json:"id"` // 40-bit device id, hex

	Identity []byte `json:"identity,omitempty"`

	Authorized   bool `json:"authorized"`
	ActiveBridge bool `json:"activeBridge"`

	IPAssignments   []string `json:"ipAssignments"`
	NoAutoAssignIPs bool     `json:"noAutoAssignIps"`

	SSOExempt bool  `json:"ssoExempt"`
	AuthExpiry int64 `json:"authenticationExpiryTime"`

	CreationTime         int64 `json:"creationTime"`
	LastAuthorizedTime   int64 `json:"lastAuthorizedTime"`
	LastDeauthorizedTime int64 `json:"lastDeauthorizedTime"`

	RemoteTrace RemoteTrace `json:"remoteTrace"`

	Revision     uint64 `json:"revision"`
	Capabilities []byte `json:"capabilities,omitempty"`
	Tags         []byte `json:"tags,omitempty"`

	Version VersionTriplet `json:"version"`
}

// Normalize fills in the documented defaults for optional fields.
func (m *MemberRecord) Normalize() *MemberRecord {
	if m.IPAssignments == nil {
		m.IPAssignments = []string{}
	}
	return m
}

// Equal reports field-wise equality ignoring Revision, matching the
// network record's comparison contract.
func (m MemberRecord) Equal(o MemberRecord) bool {
	m.Revision, o.Revision = 0, 0
	return memberFieldsEqual(m, o)
}

func memberFieldsEqual(a, b MemberRecord) bool {
	if a.NetworkID != b.NetworkID || a.ID != b.ID {
		return false
	}
	if a.Authorized != b.Authorized || a.ActiveBridge != b.ActiveBridge {
		return false
	}
	if a.NoAutoAssignIPs != b.NoAutoAssignIPs || a.SSOExempt != b.SSOExempt {
		return false
	}
	if a.AuthExpiry != b.AuthExpiry || a.RemoteTrace != b.RemoteTrace {
		return false
	}
	if a.Version != b.Version {
		return false
	}
	if string(a.Identity) != string(b.Identity) {
		return false
	}
	if string(a.Capabilities) != string(b.Capabilities) || string(a.Tags) != string(b.Tags) {
		return false
	}
	if len(a.IPAssignments) != len(b.IPAssignments) {
		return false
	}
	for i := range a.IPAssignments {
		if a.IPAssignments[i] != b.IPAssignments[i] {
			return false
		}
	}
	return true
}

// Key identifies a member uniquely within the façade's cache.
type MemberKey struct {
	NetworkID string
	MemberID  string
}

func (m MemberRecord) Key() MemberKey {
	return MemberKey{NetworkID: m.NetworkID, MemberID: m.ID}
}

// StampCreatedIfZero is the member analogue of NetworkRecord.Touch; members
// do not carry a LastModified column in the spec's schema, so it only sets
// CreationTime, and only when it is still zero.
func (m *MemberRecord) StampCreatedIfZero(now time.Time) {
	if m.CreationTime == 0 {
		m.CreationTime = now.UnixMilli()
	}
}
