package listener

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// streamSpec pairs one stream key with the object kind its entries decode
// into. One stream per kind, keyed by controller id, per spec.md §4.6.
type streamSpec struct {
	key  string
	kind ObjectKind
}

// Redis is the stream-based listener variant: an XREAD loop per stream,
// replaying from id "0" on startup and acking every entry by XDEL after
// dispatch, including entries whose payload failed to dispatch. Grounded on pkg/api/ws.go's read-loop shape, swapping the
// websocket connection for a blocking XREAD call.
type Redis struct {
	cli     redis.UniversalClient
	streams []streamSpec

	dispatch Dispatcher

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

func NewRedis(cli redis.UniversalClient, controllerID string, d Dispatcher) *Redis {
	return &Redis{
		cli: cli,
		streams: []streamSpec{
			{key: fmt.Sprintf("network-stream:{%s}", controllerID), kind: KindNetwork},
			{key: fmt.Sprintf("member-stream:{%s}", controllerID), kind: KindMember},
		},
		dispatch: d,
	}
}

func (r *Redis) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel

	for _, spec := range r.streams {
		spec := spec
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			r.runStream(ctx, spec)
		}()
	}
	return nil
}

func (r *Redis) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
}

// runStream replays the stream from id "0" forever; XREAD without COUNT
// blocks until new entries arrive, so the loop idles cheaply between
// events.
func (r *Redis) runStream(ctx context.Context, spec streamSpec) {
	lastID := "0"
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		res, err := r.cli.XRead(ctx, &redis.XReadArgs{
			Streams: []string{spec.key, lastID},
			Block:   5 * time.Second,
		}).Result()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if err == redis.Nil {
				continue
			}
			logDispatchErr("redis", spec.key, err)
			if !sleepOrDone(ctx, time.Second) {
				return
			}
			continue
		}

		for _, stream := range res {
			for _, msg := range stream.Messages {
				r.handleMessage(ctx, spec, msg)
				lastID = msg.ID
			}
		}
	}
}

func (r *Redis) handleMessage(ctx context.Context, spec streamSpec, msg redis.XMessage) {
	payload, _ := msg.Values["payload"].(string)
	if err := dispatchJSON(r.dispatch, spec.kind, []byte(payload)); err != nil {
		logDispatchErr("redis", spec.key, err)
	}
	if err := r.cli.XDel(ctx, spec.key, msg.ID).Err(); err != nil {
		logDispatchErr("redis", spec.key, err)
	}
}
