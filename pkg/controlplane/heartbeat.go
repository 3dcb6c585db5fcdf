package controlplane

import (
	"context"
	"os"
	"time"

	"gorm.io/gorm/clause"

	"github.com/zerotier-like/controlplane/pkg/version"
)

const heartbeatInterval = time.Second

// runHeartbeatLoop upserts this controller's liveness row once per second,
// per spec.md §4.3. PoolExhausted/StoreTransient failures are logged and
// the loop simply waits for the next tick — no retry.
func (db *DB) runHeartbeatLoop(ctx context.Context) {
	defer db.wg.Done()

	hostname, _ := os.Hostname()
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			db.heartbeatOnce(hostname)
		}
	}
}

func (db *DB) heartbeatOnce(hostname string) {
	row := controllerRow{
		ID:             db.controllerID,
		Hostname:       hostname,
		LastHeartbeat:  nowMillis(),
		PublicIdentity: db.publicIdentity,
		Version:        version.BuildCN(),
	}
	err := db.gdb.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"hostname", "last_heartbeat", "public_identity", "version"}),
	}).Create(&row).Error
	if err != nil {
		logStoreError("heartbeat", err)
		return
	}

	if db.redisSideIndex != nil {
		if err := db.redisSideIndex.ZAddSideIndex(context.Background(), sideIndexControllersKey, db.controllerID, float64(row.LastHeartbeat)); err != nil {
			logStoreError("heartbeat: side index", err)
		}
	}
}

const sideIndexControllersKey = "controllers"
