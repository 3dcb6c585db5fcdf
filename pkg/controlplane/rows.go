package controlplane

import (
	"encoding/json"
	"fmt"

	"github.com/zerotier-like/controlplane/pkg/model"
)

// networkRow mirrors networks_ctl exactly as spec.md §6 describes it: a
// handful of dedicated columns plus one opaque configuration blob holding
// everything else. Grounded on pkg/model's NetworkRecord/member.go split
// between dedicated and catch-all fields.
type networkRow struct {
	ID            string `gorm:"column:id;primaryKey"`
	Name          string `gorm:"column:name"`
	Configuration []byte `gorm:"column:configuration"`
	ControllerID  string `gorm:"column:controller_id"`
	Revision      uint64 `gorm:"column:revision"`
	CreationTime  int64  `gorm:"column:creation_time"`
	LastModified  int64  `gorm:"column:last_modified"`
}

func (networkRow) TableName() string { return "networks_ctl" }

// networkConfiguration is the shape serialized into networkRow.Configuration.
// ID/Name/Revision live in dedicated columns and are not duplicated here.
type networkConfiguration struct {
	Rules          []byte            `json:"rules,omitempty"`
	Tags           []byte            `json:"tags,omitempty"`
	Capabilities   []byte            `json:"capabilities,omitempty"`
	Routes         []byte            `json:"routes,omitempty"`
	DNS            []byte            `json:"dns,omitempty"`
	AssignmentPool []string          `json:"ipAssignmentPools,omitempty"`
	V4AssignMode   model.V4AssignMode `json:"v4AssignMode"`
	V6AssignMode   model.V6AssignMode `json:"v6AssignMode"`
	Private        bool              `json:"private"`
	MTU            int               `json:"mtu"`
	MulticastLimit int               `json:"multicastLimit"`
	RemoteTrace    model.RemoteTrace `json:"remoteTrace"`
	SSOEnabled     bool              `json:"ssoEnabled"`
	SSOConfig      []byte            `json:"ssoConfig,omitempty"`
}

func encodeNetworkRow(n model.NetworkRecord, controllerID string) (networkRow, error) {
	cfg := networkConfiguration{
		Rules:          n.Rules,
		Tags:           n.Tags,
		Capabilities:   n.Capabilities,
		Routes:         n.Routes,
		DNS:            n.DNS,
		AssignmentPool: n.AssignmentPool,
		V4AssignMode:   n.V4AssignMode,
		V6AssignMode:   n.V6AssignMode,
		Private:        n.Private,
		MTU:            n.MTU,
		MulticastLimit: n.MulticastLimit,
		RemoteTrace:    n.RemoteTrace,
		SSOEnabled:     n.SSOEnabled,
		SSOConfig:      n.SSOConfig,
	}
	blob, err := json.Marshal(cfg)
	if err != nil {
		return networkRow{}, fmt.Errorf("controlplane: encode network configuration: %w", err)
	}
	return networkRow{
		ID:            n.ID,
		Name:          n.Name,
		Configuration: blob,
		ControllerID:  controllerID,
		Revision:      n.Revision,
		CreationTime:  n.CreationTime,
		LastModified:  n.LastModified,
	}, nil
}

func decodeNetworkRow(row networkRow) (model.NetworkRecord, error) {
	var cfg networkConfiguration
	if len(row.Configuration) > 0 {
		if err := json.Unmarshal(row.Configuration, &cfg); err != nil {
			return model.NetworkRecord{}, fmt.Errorf("controlplane: decode network configuration: %w", err)
		}
	}
	n := model.NetworkRecord{
		ID:             row.ID,
		Name:           row.Name,
		Revision:       row.Revision,
		CreationTime:   row.CreationTime,
		LastModified:   row.LastModified,
		Rules:          cfg.Rules,
		Tags:           cfg.Tags,
		Capabilities:   cfg.Capabilities,
		Routes:         cfg.Routes,
		DNS:            cfg.DNS,
		AssignmentPool: cfg.AssignmentPool,
		V4AssignMode:   cfg.V4AssignMode,
		V6AssignMode:   cfg.V6AssignMode,
		Private:        cfg.Private,
		MTU:            cfg.MTU,
		MulticastLimit: cfg.MulticastLimit,
		RemoteTrace:    cfg.RemoteTrace,
		SSOEnabled:     cfg.SSOEnabled,
		SSOConfig:      cfg.SSOConfig,
	}
	n.Normalize()
	return n, nil
}

// membershipRow mirrors network_memberships_ctl's fully enumerated column
// list from spec.md §6 — unlike networks_ctl, every field has its own
// column.
type membershipRow struct {
	DeviceID  string `gorm:"column:device_id;primaryKey"`
	NetworkID string `gorm:"column:network_id;primaryKey"`

	Authorized      bool   `gorm:"column:authorized"`
	ActiveBridge    bool   `gorm:"column:active_bridge"`
	IPAssignments   []byte `gorm:"column:ip_assignments"`
	NoAutoAssignIPs bool   `gorm:"column:no_auto_assign_ips"`
	SSOExempt       bool   `gorm:"column:sso_exempt"`

	AuthenticationExpiryTime int64 `gorm:"column:authentication_expiry_time"`

	Capabilities []byte `gorm:"column:capabilities"`
	Tags         []byte `gorm:"column:tags"`
	Identity     []byte `gorm:"column:identity"`

	CreationTime         int64 `gorm:"column:creation_time"`
	LastAuthorizedTime   int64 `gorm:"column:last_authorized_time"`
	LastDeauthorizedTime int64 `gorm:"column:last_deauthorized_time"`

	RemoteTraceLevel  int    `gorm:"column:remote_trace_level"`
	RemoteTraceTarget string `gorm:"column:remote_trace_target"`

	Revision uint64 `gorm:"column:revision"`

	VersionMajor    int `gorm:"column:version_major"`
	VersionMinor    int `gorm:"column:version_minor"`
	VersionRevision int `gorm:"column:version_revision"`
	VersionProtocol int `gorm:"column:version_protocol"`
}

func (membershipRow) TableName() string { return "network_memberships_ctl" }

func encodeMembershipRow(m model.MemberRecord) (membershipRow, error) {
	ipAssignments, err := json.Marshal(m.IPAssignments)
	if err != nil {
		return membershipRow{}, fmt.Errorf("controlplane: encode ip assignments: %w", err)
	}
	return membershipRow{
		DeviceID:                 m.ID,
		NetworkID:                m.NetworkID,
		Authorized:               m.Authorized,
		ActiveBridge:             m.ActiveBridge,
		IPAssignments:            ipAssignments,
		NoAutoAssignIPs:          m.NoAutoAssignIPs,
		SSOExempt:                m.SSOExempt,
		AuthenticationExpiryTime: m.AuthExpiry,
		Capabilities:             m.Capabilities,
		Tags:                     m.Tags,
		Identity:                 m.Identity,
		CreationTime:             m.CreationTime,
		LastAuthorizedTime:       m.LastAuthorizedTime,
		LastDeauthorizedTime:     m.LastDeauthorizedTime,
		RemoteTraceLevel:         m.RemoteTrace.Level,
		RemoteTraceTarget:        m.RemoteTrace.Target,
		Revision:                 m.Revision,
		VersionMajor:             m.Version.Major,
		VersionMinor:             m.Version.Minor,
		VersionRevision:          m.Version.Revision,
		VersionProtocol:          m.Version.Protocol,
	}, nil
}

func decodeMembershipRow(row membershipRow) (model.MemberRecord, error) {
	var ipAssignments []string
	if len(row.IPAssignments) > 0 {
		if err := json.Unmarshal(row.IPAssignments, &ipAssignments); err != nil {
			return model.MemberRecord{}, fmt.Errorf("controlplane: decode ip assignments: %w", err)
		}
	}
	m := model.MemberRecord{
		NetworkID:            row.NetworkID,
		ID:                   row.DeviceID,
		Identity:             row.Identity,
		Authorized:           row.Authorized,
		ActiveBridge:         row.ActiveBridge,
		IPAssignments:        ipAssignments,
		NoAutoAssignIPs:      row.NoAutoAssignIPs,
		SSOExempt:            row.SSOExempt,
		AuthExpiry:           row.AuthenticationExpiryTime,
		CreationTime:         row.CreationTime,
		LastAuthorizedTime:   row.LastAuthorizedTime,
		LastDeauthorizedTime: row.LastDeauthorizedTime,
		RemoteTrace:          model.RemoteTrace{Level: row.RemoteTraceLevel, Target: row.RemoteTraceTarget},
		Revision:             row.Revision,
		Capabilities:         row.Capabilities,
		Tags:                 row.Tags,
		Version: model.VersionTriplet{
			Major:    row.VersionMajor,
			Minor:    row.VersionMinor,
			Revision: row.VersionRevision,
			Protocol: row.VersionProtocol,
		},
	}
	m.Normalize()
	return m, nil
}

// controllerRow mirrors controllers_ctl, written once per second by the
// heartbeat loop.
type controllerRow struct {
	ID             string `gorm:"column:id;primaryKey"`
	Hostname       string `gorm:"column:hostname"`
	LastHeartbeat  int64  `gorm:"column:last_heartbeat"`
	PublicIdentity string `gorm:"column:public_identity"`
	Version        string `gorm:"column:version"`
}

func (controllerRow) TableName() string { return "controllers_ctl" }

// ztcMemberRow is the read-only canonical membership row the
// online-notification loop checks against before handing a liveness report
// to the status sink — distinct from membershipRow/network_memberships_ctl,
// which is this controller's own write table.
type ztcMemberRow struct {
	ID        string `gorm:"column:id"`
	NetworkID string `gorm:"column:network_id"`
}

func (ztcMemberRow) TableName() string { return "ztc_member" }

// ztcDatabaseRow is the single-row schema-version marker checked at
// construction.
type ztcDatabaseRow struct {
	Version int `gorm:"column:version"`
}

func (ztcDatabaseRow) TableName() string { return "ztc_database" }
