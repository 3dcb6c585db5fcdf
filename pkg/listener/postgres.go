package listener

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
)

// channelSpec pairs one LISTEN channel name with the object kind its
// payloads decode into.
type channelSpec struct {
	channel string
	kind    ObjectKind
}

// Postgres is the channel-based listener variant: one dedicated pgx
// connection per LISTEN channel, blocking on WaitForNotification in a
// loop. Grounded on pkg/consul/store_consul.go's blocking-query reconnect
// loop shape, adapted from Consul's long-poll to pgx's notification wait.
type Postgres struct {
	dsn      string
	channels []channelSpec
	dispatch Dispatcher

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewPostgres builds a channel-based listener that LISTENs on one channel
// per network/member object kind.
func NewPostgres(dsn, networkChannel, memberChannel string, d Dispatcher) *Postgres {
	return &Postgres{
		dsn: dsn,
		channels: []channelSpec{
			{channel: networkChannel, kind: KindNetwork},
			{channel: memberChannel, kind: KindMember},
		},
		dispatch: d,
	}
}

func (p *Postgres) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	for _, spec := range p.channels {
		spec := spec
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.runChannel(ctx, spec)
		}()
	}
	return nil
}

func (p *Postgres) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}

// runChannel owns one dedicated connection for the lifetime of the
// listener, reconnecting with backoff if the connection drops. A fresh
// LISTEN is issued on every (re)connect since pgx connections do not
// preserve server-side state across reconnects.
func (p *Postgres) runChannel(ctx context.Context, spec channelSpec) {
	backoff := time.Second
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		conn, err := pgx.Connect(ctx, p.dsn)
		if err != nil {
			logDispatchErr("postgres", spec.channel, err)
			if !sleepOrDone(ctx, backoff) {
				return
			}
			backoff = nextBackoff(backoff)
			continue
		}
		backoff = time.Second

		if _, err := conn.Exec(ctx, "LISTEN \""+spec.channel+"\""); err != nil {
			logDispatchErr("postgres", spec.channel, err)
			conn.Close(ctx)
			if !sleepOrDone(ctx, backoff) {
				return
			}
			continue
		}

		p.waitLoop(ctx, conn, spec)
		conn.Close(ctx)

		if ctx.Err() != nil {
			return
		}
	}
}

func (p *Postgres) waitLoop(ctx context.Context, conn *pgx.Conn, spec channelSpec) {
	for {
		notification, err := conn.WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logDispatchErr("postgres", spec.channel, err)
			return
		}
		if err := dispatchJSON(p.dispatch, spec.kind, []byte(notification.Payload)); err != nil {
			logDispatchErr("postgres", spec.channel, err)
		}
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func nextBackoff(d time.Duration) time.Duration {
	next := d * 2
	if next > 30*time.Second {
		return 30 * time.Second
	}
	return next
}
