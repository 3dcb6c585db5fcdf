package model

import "time"

// V4AssignMode controls how IPv4 addresses are handed out on a network.
type V4AssignMode struct {
	ZT bool `json:"zt"`
}

// V6AssignMode controls how IPv6 addresses are handed out on a network.
type V6AssignMode struct {
	ZT      bool `json:"zt"`
	Plane6  bool `json:"6plane"`
	RFC4193 bool `json:"rfc4193"`
}

// RemoteTrace configures where and how verbosely a network's traffic is
// mirrored for debugging.
type RemoteTrace struct {
	Level  int    `json:"level,omitempty"`
	Target string `json:"target,omitempty"`
}

// NetworkRecord is the authoritative configuration of one virtual network.
// Normalization defaults (applied on bulk load and on save of a record that
// omits them) are documented per field below.
type NetworkRecord struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Revision uint64 `json:"revision"`

	CreationTime int64 `json:"creationTime"`
	LastModified int64 `json:"lastModified"`

	Rules        []byte `json:"rules,omitempty"`
	Tags         []byte `json:"tags,omitempty"`
	Capabilities []byte `json:"capabilities,omitempty"`
	Routes       []byte `json:"routes,omitempty"`
	DNS          []byte `json:"dns,omitempty"`

	AssignmentPool []string `json:"ipAssignmentPools,omitempty"`

	V4AssignMode V4AssignMode `json:"v4AssignMode"`
	V6AssignMode V6AssignMode `json:"v6AssignMode"`

	Private        bool `json:"private"`
	MTU            int  `json:"mtu"`
	MulticastLimit int  `json:"multicastLimit"`

	RemoteTrace RemoteTrace `json:"remoteTrace"`

	SSOEnabled bool   `json:"ssoEnabled"`
	SSOConfig  []byte `json:"ssoConfig,omitempty"`
}

// Normalize fills in the documented defaults for fields a caller may have
// omitted. It mutates and returns the receiver for convenience at call sites.
func (n *NetworkRecord) Normalize() *NetworkRecord {
	if n.MTU == 0 {
		n.MTU = 2800
	}
	if n.MulticastLimit == 0 {
		n.MulticastLimit = 64
	}
	// Private defaults true; there is no "unset" sentinel for bool, so
	// normalization of Private is the caller's responsibility on the
	// zero-value path (bulk load always sets it explicitly).
	if !n.V4AssignMode.ZT && !n.V6AssignMode.ZT && !n.V6AssignMode.Plane6 && !n.V6AssignMode.RFC4193 {
		n.V4AssignMode.ZT = true
		n.V6AssignMode.ZT = true
		n.V6AssignMode.Plane6 = true
	}
	return n
}

// Equal reports whether two normalized network records carry the same
// field-wise content, ignoring Revision (the caller bumps Revision itself
// after comparing — see DB.SaveNetwork).
func (n NetworkRecord) Equal(o NetworkRecord) bool {
	n.Revision, o.Revision = 0, 0
	return networkFieldsEqual(n, o)
}

func networkFieldsEqual(a, b NetworkRecord) bool {
	if a.ID != b.ID || a.Name != b.Name {
		return false
	}
	if a.Private != b.Private || a.MTU != b.MTU || a.MulticastLimit != b.MulticastLimit {
		return false
	}
	if a.V4AssignMode != b.V4AssignMode || a.V6AssignMode != b.V6AssignMode {
		return false
	}
	if a.RemoteTrace != b.RemoteTrace || a.SSOEnabled != b.SSOEnabled {
		return false
	}
	if string(a.Rules) != string(b.Rules) || string(a.Tags) != string(b.Tags) {
		return false
	}
	if string(a.Capabilities) != string(b.Capabilities) || string(a.Routes) != string(b.Routes) {
		return false
	}
	if string(a.DNS) != string(b.DNS) || string(a.SSOConfig) != string(b.SSOConfig) {
		return false
	}
	if len(a.AssignmentPool) != len(b.AssignmentPool) {
		return false
	}
	for i := range a.AssignmentPool {
		if a.AssignmentPool[i] != b.AssignmentPool[i] {
			return false
		}
	}
	return true
}

// Touch stamps LastModified with the given time, expressed in milliseconds
// since epoch the way the rest of the record's timestamps are.
func (n *NetworkRecord) Touch(now time.Time) {
	n.LastModified = now.UnixMilli()
}
