package controlplane

import (
	"context"
	"fmt"
	"time"

	"github.com/zerotier-like/controlplane/pkg/model"
)

const onlineNotificationInterval = 10 * time.Second

// runOnlineNotificationLoop blocks on WaitForReady, then every 10 seconds
// swaps the liveness aggregator's map into a local copy, verifies each
// survivor still exists (querying ztc_member), and hands survivors to the
// status sink, per spec.md §4.3.
func (db *DB) runOnlineNotificationLoop(ctx context.Context) {
	defer db.wg.Done()

	db.WaitForReady()

	ticker := time.NewTicker(onlineNotificationInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			db.onlineNotificationTick()
		}
	}
}

func (db *DB) onlineNotificationTick() {
	reports := db.liveness.Swap()
	if len(reports) == 0 {
		return
	}

	for key, report := range reports {
		var count int64
		err := db.gdb.Model(&ztcMemberRow{}).
			Where("network_id = ? AND id = ?", key.NetworkID, key.MemberID).
			Count(&count).Error
		if err != nil {
			logStoreError("online notify: existence check", err)
			continue
		}
		if count == 0 {
			// LivenessMemberMissing: silently skip, per spec.md §7.
			continue
		}

		var version string
		memberKey := model.MemberKey{NetworkID: key.NetworkID, MemberID: key.MemberID}
		db.mu.RLock()
		if m, ok := db.members[memberKey]; ok {
			version = fmt.Sprintf("%d.%d.%d", m.Version.Major, m.Version.Minor, m.Version.Revision)
		}
		db.mu.RUnlock()

		db.statusSink.UpdateNodeStatus(key.NetworkID, key.MemberID, report.OS, report.Arch, version, report.LastPhysicalAddr, report.LastSeen)
	}

	if err := db.statusSink.WritePending(); err != nil {
		logStoreError("online notify: write pending", err)
	}
}
