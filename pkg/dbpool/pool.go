// Package dbpool wraps pgxpool behind the borrow/unborrow-shaped façade
// spec'd for the relational store's connection pool, so call sites in
// pkg/controlplane read the way the teacher's gorm pool configuration
// reads, while still giving us a typed PoolExhausted error pgxpool does
// not expose directly.
package dbpool

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zerotier-like/controlplane/pkg/model"
)

// ErrPoolExhausted is returned by Borrow when no connection becomes
// available before the borrow deadline.
var ErrPoolExhausted = errors.New("dbpool: pool exhausted")

// BorrowTimeout bounds how long Borrow will wait for a connection before
// returning ErrPoolExhausted. It is the implementation-chosen deadline
// spec.md §4.1 leaves up to the implementer.
const BorrowTimeout = 3 * time.Second

// Pool is a fixed-size pool of long-lived connections to the relational
// store. It does not validate liveness of borrowed connections; callers
// discard-and-replace on failure by simply not returning a broken
// connection (pgxpool already does this internally on Release).
type Pool struct {
	pgx *pgxpool.Pool
}

// Open builds the pool object; pgxpool opens connections lazily on
// acquire, up to MaxConns, keeping at least MinConns open once set.
func Open(ctx context.Context, cfg model.PostgresConfig) (*Pool, error) {
	pgxCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("dbpool: parse dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		pgxCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pgxCfg.MinConns = cfg.MinConns
	}
	connTimeout := cfg.ConnTimeout
	if connTimeout == 0 {
		connTimeout = 3 * time.Second
	}
	pgxCfg.ConnConfig.ConnectTimeout = connTimeout

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, fmt.Errorf("dbpool: open: %w", err)
	}
	return &Pool{pgx: pool}, nil
}

// Conn is a borrowed connection. Release returns it to the pool.
type Conn struct {
	release func()
	raw     *pgxpool.Conn
}

// Borrow returns an idle connection or creates one up to the pool's cap,
// blocking otherwise. It fails with ErrPoolExhausted if no connection
// becomes available within BorrowTimeout.
func (p *Pool) Borrow(ctx context.Context) (*Conn, error) {
	borrowCtx, cancel := context.WithTimeout(ctx, BorrowTimeout)
	defer cancel()

	raw, err := p.pgx.Acquire(borrowCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrPoolExhausted
		}
		return nil, fmt.Errorf("dbpool: borrow: %w", err)
	}
	return &Conn{raw: raw, release: raw.Release}, nil
}

// Unborrow returns the connection to the pool.
func (c *Conn) Unborrow() {
	if c.release != nil {
		c.release()
	}
}

// Raw exposes the underlying pgx connection for callers that need direct
// SQL access (e.g. LISTEN/NOTIFY in pkg/listener).
func (c *Conn) Raw() *pgxpool.Conn {
	return c.raw
}

// PgxPool exposes the underlying pgxpool.Pool so gorm's postgres driver
// can run on a *sql.DB bridged onto this same pool (stdlib.OpenDBFromPool
// in pkg/controlplane's New).
func (p *Pool) PgxPool() *pgxpool.Pool {
	return p.pgx
}

// Close closes every connection in the pool.
func (p *Pool) Close() {
	p.pgx.Close()
}
