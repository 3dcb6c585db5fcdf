package statussink

import (
	"errors"
	"fmt"
	"log"

	"gorm.io/gorm"
)

// membershipRow is the slice of network_memberships_ctl this sink touches:
// it backs both the membership-existence pre-check and the status-column
// update that follows it, matching spec.md §4.5's "missing memberships
// skip (caught via a pre-check query)".
type membershipRow struct {
	DeviceID  string `gorm:"column:device_id"`
	NetworkID string `gorm:"column:network_id"`
	LastSeen  int64  `gorm:"column:last_seen"`
	Address   string `gorm:"column:last_physical_address"`
	OS        string `gorm:"column:os"`
	Arch      string `gorm:"column:arch"`
	Version   string `gorm:"column:client_version"`
}

func (membershipRow) TableName() string { return "network_memberships_ctl" }

// Postgres is the relational status-sink variant: per-entry upsert on
// (device_id, network_id) via a pipelined gorm session, one transaction
// per flush. Grounded on pkg/db/mysql.go + pkg/api/auth.go's gorm usage.
type Postgres struct {
	db      *gorm.DB
	pending *pendingBuffer
}

// NewPostgres wraps an existing *gorm.DB connection (shared with the
// façade's own store, per spec.md §4.5).
func NewPostgres(db *gorm.DB) *Postgres {
	return &Postgres{db: db, pending: newPendingBuffer()}
}

func (p *Postgres) UpdateNodeStatus(networkID, memberID, os, arch, version, address string, lastSeen int64) {
	p.pending.add(networkID, memberID, os, arch, version, address, lastSeen)
}

func (p *Postgres) QueueLength() int {
	return p.pending.len()
}

func (p *Postgres) WritePending() error {
	entries := p.pending.swap()
	if len(entries) == 0 {
		return nil
	}

	return p.db.Transaction(func(tx *gorm.DB) error {
		for _, e := range entries {
			var count int64
			if err := tx.Model(&membershipRow{}).
				Where("device_id = ? AND network_id = ?", e.MemberID, e.NetworkID).
				Count(&count).Error; err != nil {
				log.Printf("statussink/postgres: pre-check failed for %s/%s: %v", e.NetworkID, e.MemberID, err)
				continue
			}
			if count == 0 {
				continue
			}
			err := tx.Model(&membershipRow{}).
				Where("device_id = ? AND network_id = ?", e.MemberID, e.NetworkID).
				Updates(map[string]interface{}{
					"last_seen":              e.LastSeen,
					"last_physical_address":  e.Address,
					"os":                     e.OS,
					"arch":                   e.Arch,
					"client_version":         e.Version,
				}).Error
			if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("statussink/postgres: update %s/%s: %w", e.NetworkID, e.MemberID, err)
			}
		}
		return nil
	})
}
