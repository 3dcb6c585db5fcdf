package controlplane

import (
	"context"
	"errors"

	"gorm.io/gorm/clause"

	"github.com/zerotier-like/controlplane/pkg/model"
)

var errUnknownNetwork = errors.New("controlplane: member save references unknown network")

// runCommitWorker is one of commitWorkerCount identical workers draining
// the commit queue. Commits for a single id are not serialized across
// workers; spec.md §5 accepts the resulting race as last-writer-wins via
// ON CONFLICT.
func (db *DB) runCommitWorker(ctx context.Context) {
	defer db.wg.Done()
	for {
		item, ok := db.queue.Get()
		if !ok {
			return
		}
		select {
		case <-ctx.Done():
			return
		default:
		}
		db.commit(item.(model.CommitItem))
	}
}

func (db *DB) commit(item model.CommitItem) {
	// The actual SQL below runs through db.gdb, whose *sql.DB is bridged
	// from the same underlying pgxpool.Pool dbpool.Pool wraps (see
	// stdlib.OpenDBFromPool in controlplane.go's New) — borrowing a
	// second, unused connection here would just burn a pool slot per
	// commit for nothing.
	switch item.ObjType {
	case model.ObjectNetwork:
		db.commitNetwork(item)
	case model.ObjectMember:
		db.commitMember(item)
	case model.ObjectDeleteNetwork:
		db.commitDeleteNetwork(item.NetworkID)
	case model.ObjectDeleteMember:
		db.commitDeleteMember(item.NetworkID, item.MemberID)
	}
}

func (db *DB) commitNetwork(item model.CommitItem) {
	row, err := encodeNetworkRow(*item.Network, db.controllerID)
	if err != nil {
		logStoreError("commit network: encode", err)
		return
	}

	err = db.gdb.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "configuration", "revision", "last_modified",
		}),
	}).Create(&row).Error
	if err != nil {
		logStoreError("commit network: upsert", err)
		return
	}

	db.mu.Lock()
	old, existed := db.networks[item.Network.ID]
	db.networks[item.Network.ID] = *item.Network
	db.mu.Unlock()

	if item.NotifyListeners {
		var oldPtr *model.NetworkRecord
		if existed {
			oldPtr = &old
		}
		db.fireChange(model.ChangeEvent{NetworkOld: oldPtr, NetworkNew: item.Network})
	}

	if db.redisSideIndex != nil {
		indexKey := "{" + db.controllerID + "}:networks-per-controller"
		if err := db.redisSideIndex.ZAddSideIndex(context.Background(), indexKey, item.Network.ID, float64(nowMillis())); err != nil {
			logStoreError("commit network: side index", err)
		}
	}
}

func (db *DB) commitMember(item model.CommitItem) {
	member := item.Member

	var networkCount int64
	if err := db.gdb.Model(&networkRow{}).Where("id = ?", member.NetworkID).Count(&networkCount).Error; err != nil {
		logStoreError("commit member: network existence check", err)
		return
	}
	if networkCount == 0 {
		logStoreError("commit member: unknown network "+member.NetworkID, errUnknownNetwork)
		return
	}

	var existingCount int64
	if err := db.gdb.Model(&membershipRow{}).
		Where("device_id = ? AND network_id = ?", member.ID, member.NetworkID).
		Count(&existingCount).Error; err != nil {
		logStoreError("commit member: existence check", err)
		return
	}
	isNewMember := existingCount == 0

	row, err := encodeMembershipRow(*member)
	if err != nil {
		logStoreError("commit member: encode", err)
		return
	}

	err = db.gdb.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "device_id"}, {Name: "network_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"authorized", "active_bridge", "ip_assignments", "no_auto_assign_ips",
			"sso_exempt", "authentication_expiry_time", "capabilities", "tags",
			"identity", "last_authorized_time", "last_deauthorized_time",
			"remote_trace_level", "remote_trace_target", "revision",
			"version_major", "version_minor", "version_revision", "version_protocol",
		}),
	}).Create(&row).Error
	if err != nil {
		logStoreError("commit member: upsert", err)
		return
	}

	db.mu.Lock()
	old, existed := db.members[member.Key()]
	db.members[member.Key()] = *member
	db.mu.Unlock()

	if item.NotifyListeners {
		var oldPtr *model.MemberRecord
		if existed {
			oldPtr = &old
		}
		db.fireChange(model.ChangeEvent{MemberOld: oldPtr, MemberNew: member})
	}

	if isNewMember {
		if db.outbound != nil {
			db.outbound.Notify(*member)
		}
	}
}

func (db *DB) commitDeleteNetwork(networkID string) {
	if err := db.gdb.Where("network_id = ?", networkID).Delete(&membershipRow{}).Error; err != nil {
		logStoreError("commit delete network: memberships", err)
		return
	}
	if err := db.gdb.Where("id = ?", networkID).Delete(&networkRow{}).Error; err != nil {
		logStoreError("commit delete network: row", err)
		return
	}

	db.mu.Lock()
	delete(db.networks, networkID)
	for key := range db.members {
		if key.NetworkID == networkID {
			delete(db.members, key)
		}
	}
	db.mu.Unlock()
}

func (db *DB) commitDeleteMember(networkID, memberID string) {
	err := db.gdb.Where("device_id = ? AND network_id = ?", memberID, networkID).Delete(&membershipRow{}).Error
	if err != nil {
		logStoreError("commit delete member", err)
		return
	}

	db.mu.Lock()
	delete(db.members, model.MemberKey{NetworkID: networkID, MemberID: memberID})
	db.mu.Unlock()
}
