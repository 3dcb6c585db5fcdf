// Package controlplane implements the central network-controller data
// plane: an in-memory cache of network/member records reconciled via a
// write-behind commit pipeline to a relational store, fronting three
// interchangeable notification-listener transports and a liveness
// aggregator feeding one of three status-sink backends.
package controlplane

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/stdlib"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/zerotier-like/controlplane/pkg/dbpool"
	"github.com/zerotier-like/controlplane/pkg/listener"
	"github.com/zerotier-like/controlplane/pkg/liveness"
	"github.com/zerotier-like/controlplane/pkg/model"
	"github.com/zerotier-like/controlplane/pkg/outbound"
	"github.com/zerotier-like/controlplane/pkg/publisher"
	"github.com/zerotier-like/controlplane/pkg/queue"
	"github.com/zerotier-like/controlplane/pkg/statussink"
)

// ErrSchemaTooOld is returned by New when the store reports a schema
// version below the compiled-in minimum; per spec.md §7 this is fatal at
// startup.
var ErrSchemaTooOld = errors.New("controlplane: store schema version below minimum")

const commitWorkerCount = 4

// ChangeListener observes every fan-out event the façade produces: one
// per bulk-loaded record, one per committed save with NotifyListeners
// set, and one per erase. The optional publisher is fed from the same
// fan-out point independently of it; tests wire it to a recorder.
type ChangeListener func(model.ChangeEvent)

// DB is the central façade described in spec.md §4.3.
type DB struct {
	controllerID     string
	publicIdentity   string

	mu       sync.RWMutex
	networks map[string]model.NetworkRecord
	members  map[model.MemberKey]model.MemberRecord

	queue     *queue.Queue
	liveness  *liveness.Aggregator
	readiness *readinessGate

	pool *dbpool.Pool
	gdb  *gorm.DB

	transport  listener.Listener
	statusSink statussink.Sink
	publisher  *publisher.Publisher
	outbound   *outbound.Hook

	onChange          ChangeListener
	redisSideIndex    redisSideIndexer
	redisMemberStatus bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// redisSideIndexer is the minimal slice of the go-redis client the
// "networks per controller" side index needs; kept as an interface so
// tests can stub it without a live Redis server.
type redisSideIndexer interface {
	ZAddSideIndex(ctx context.Context, key, member string, score float64) error
}

// Option configures optional collaborators at construction time.
type Option func(*DB)

func WithChangeListener(fn ChangeListener) Option {
	return func(db *DB) { db.onChange = fn }
}

func WithPublisher(p *publisher.Publisher) Option {
	return func(db *DB) { db.publisher = p }
}

func WithOutboundHook(h *outbound.Hook) Option {
	return func(db *DB) { db.outbound = h }
}

func WithStatusSink(s statussink.Sink) Option {
	return func(db *DB) { db.statusSink = s }
}

func WithRedisSideIndex(idx redisSideIndexer, memberStatusEnabled bool) Option {
	return func(db *DB) {
		db.redisSideIndex = idx
		db.redisMemberStatus = memberStatusEnabled
	}
}

// New performs the construction sequence from spec.md §4.9: open the pool,
// verify the schema version, run bulk init, then start every background
// loop. The returned DB has already reached FULLY_READY by the time New
// returns successfully, since bulk init runs synchronously.
//
// transportFactory is called once, after the façade is otherwise fully
// constructed, to build the listener transport with db as its Dispatcher —
// this breaks what would otherwise be an import cycle between
// pkg/controlplane and pkg/listener.
func New(ctx context.Context, cfg model.ControllerConfig, transportFactory func(listener.Dispatcher) (listener.Listener, error), opts ...Option) (*DB, error) {
	pool, err := dbpool.Open(ctx, cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("controlplane: open pool: %w", err)
	}

	sqlDB := stdlib.OpenDBFromPool(pool.PgxPool())
	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("controlplane: open gorm: %w", err)
	}

	if err := checkSchemaVersion(gdb, cfg.MinSchemaVersion); err != nil {
		pool.Close()
		return nil, err
	}

	db := &DB{
		controllerID:   cfg.ControllerID,
		publicIdentity: cfg.PublicIdentity,
		networks:       make(map[string]model.NetworkRecord),
		members:      make(map[model.MemberKey]model.MemberRecord),
		queue:        queue.New(),
		liveness:     liveness.New(nil),
		readiness:    newReadinessGate(),
		pool:         pool,
		gdb:          gdb,
	}
	for _, opt := range opts {
		opt(db)
	}
	if db.statusSink == nil {
		db.statusSink = statussink.NewPostgres(gdb)
	}

	if transportFactory != nil {
		transport, err := transportFactory(db)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("controlplane: build listener transport: %w", err)
		}
		db.transport = transport
	}

	if err := db.bulkInit(); err != nil {
		pool.Close()
		return nil, fmt.Errorf("controlplane: bulk init: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	db.cancel = cancel

	for i := 0; i < commitWorkerCount; i++ {
		db.wg.Add(1)
		go db.runCommitWorker(runCtx)
	}
	db.wg.Add(1)
	go db.runHeartbeatLoop(runCtx)
	db.wg.Add(1)
	go db.runOnlineNotificationLoop(runCtx)

	if db.transport != nil {
		if err := db.transport.Start(); err != nil {
			log.Printf("controlplane: listener transport failed to start: %v", err)
		}
	}

	return db, nil
}

func checkSchemaVersion(gdb *gorm.DB, minVersion int) error {
	var row ztcDatabaseRow
	if err := gdb.First(&row).Error; err != nil {
		return fmt.Errorf("controlplane: read schema version: %w", err)
	}
	if row.Version < minVersion {
		return fmt.Errorf("%w: have %d, need %d", ErrSchemaTooOld, row.Version, minVersion)
	}
	return nil
}

// Close performs the destruction sequence from spec.md §4.9: stop the
// listener transport, cancel the background loops, stop the commit queue
// (commits still queued at that point are not written), wait for every
// background goroutine to exit, then close the connection pool.
func (db *DB) Close() {
	if db.transport != nil {
		db.transport.Stop()
	}
	if db.cancel != nil {
		db.cancel()
	}
	db.queue.Stop()
	db.wg.Wait()
	db.pool.Close()
}

// WaitForReady blocks until the readiness gate reaches FULLY_READY. Never
// fails; spec.md §4.3 defines no error path for this call.
func (db *DB) WaitForReady() bool {
	db.readiness.waitForReady()
	return true
}

// IsReady is a non-blocking snapshot of readiness.
func (db *DB) IsReady() bool {
	return db.readiness.isReady()
}

// GetNetwork returns the current committed view from the in-memory cache.
// Never touches the store.
func (db *DB) GetNetwork(id string) (model.NetworkRecord, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	n, ok := db.networks[id]
	return n, ok
}

// GetMember is GetNetwork's member analogue.
func (db *DB) GetMember(networkID, memberID string) (model.MemberRecord, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	m, ok := db.members[model.MemberKey{NetworkID: networkID, MemberID: memberID}]
	return m, ok
}

func (db *DB) fireChange(ev model.ChangeEvent) {
	if db.onChange != nil {
		db.onChange(ev)
	}
	if db.publisher == nil {
		return
	}
	ctx := context.Background()
	if ev.IsNetwork() {
		db.publisher.PublishNetworkChange(ctx, ev.NetworkOld, ev.NetworkNew)
	} else {
		db.publisher.PublishMemberChange(ctx, ev.MemberOld, ev.MemberNew)
	}
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}
