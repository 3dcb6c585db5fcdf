package controlplane

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// RedisSideIndex implements redisSideIndexer on top of a go-redis client,
// backing the optional "networks/controllers per controller" side index
// spec.md §4.3 describes as "e.g. a set in the key-value cache". Kept as
// its own tiny type rather than reusing pkg/statussink.Redis since the
// side index is keyed and scored differently from the status-sink's
// online sets.
type RedisSideIndex struct {
	cli redis.UniversalClient
}

func NewRedisSideIndex(cli redis.UniversalClient) *RedisSideIndex {
	return &RedisSideIndex{cli: cli}
}

func (r *RedisSideIndex) ZAddSideIndex(ctx context.Context, key, member string, score float64) error {
	return r.cli.ZAdd(ctx, key, redis.Z{Score: score, Member: member}).Err()
}
