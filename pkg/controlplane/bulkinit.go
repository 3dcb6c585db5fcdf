package controlplane

import (
	"fmt"

	"github.com/zerotier-like/controlplane/pkg/model"
)

// bulkInit runs the two-phase load from spec.md §4.3. Any SQL error here
// is fatal: without the initial view the controller cannot answer
// authoritatively. Bulk init must complete before any commit worker
// starts, so it runs synchronously from New before the worker goroutines
// are spawned.
func (db *DB) bulkInit() error {
	if err := db.loadNetworks(); err != nil {
		return fmt.Errorf("load networks: %w", err)
	}
	db.readiness.raise(stateNetworksLoaded)

	if err := db.loadMembers(); err != nil {
		return fmt.Errorf("load members: %w", err)
	}
	db.readiness.raise(stateFullyReady)

	return nil
}

func (db *DB) loadNetworks() error {
	var rows []networkRow
	if err := db.gdb.Where("controller_id = ?", db.controllerID).Find(&rows).Error; err != nil {
		return err
	}

	for _, row := range rows {
		n, err := decodeNetworkRow(row)
		if err != nil {
			return err
		}

		db.mu.Lock()
		db.networks[n.ID] = n
		db.mu.Unlock()

		db.fireChange(model.ChangeEvent{NetworkNew: &n})
	}
	return nil
}

// loadMembers loads every membership joined to a network this controller
// owns. Grounded on the same gorm query shape as loadNetworks; the join is
// expressed as a subquery rather than a literal SQL JOIN to keep the
// membershipRow scan untouched by extra joined columns.
func (db *DB) loadMembers() error {
	var rows []membershipRow
	err := db.gdb.
		Where("network_id IN (?)", db.gdb.Model(&networkRow{}).
			Where("controller_id = ?", db.controllerID).
			Select("id")).
		Find(&rows).Error
	if err != nil {
		return err
	}

	for _, row := range rows {
		m, err := decodeMembershipRow(row)
		if err != nil {
			return err
		}

		db.mu.Lock()
		db.members[m.Key()] = m
		db.mu.Unlock()

		db.fireChange(model.ChangeEvent{MemberNew: &m})
	}
	return nil
}
