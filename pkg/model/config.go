package model

import "time"

// ListenMode selects the notification-listener transport.
type ListenMode string

const (
	ListenPostgres ListenMode = "pgsql"
	ListenRedis    ListenMode = "redis"
	ListenPubSub   ListenMode = "pubsub"
)

// StatusMode selects the status-sink backend.
type StatusMode string

const (
	StatusPostgres StatusMode = "pgsql"
	StatusRedis    StatusMode = "redis"
	StatusBigtable StatusMode = "bigtable"
)

// RedisConfig configures the Redis-backed listener/status-sink variants.
type RedisConfig struct {
	Hostname    string
	Port        int
	Password    string
	ClusterMode bool

	PoolSize       int
	PoolWait       time.Duration
	ConnLifetime   time.Duration
	ConnIdleTime   time.Duration
}

// PubSubConfig configures the hosted pub/sub listener/publisher.
type PubSubConfig struct {
	ProjectID          string
	MemberChangeTopic  string
	NetworkChangeTopic string
	MemberStatusTopic  string
	EmulatorHost       string
}

// BigTableConfig configures the wide-column status-sink variant.
type BigTableConfig struct {
	ProjectID  string
	InstanceID string
	TableID    string
}

// PostgresConfig configures the relational store connection pool.
type PostgresConfig struct {
	DSN         string
	MaxConns    int32
	MinConns    int32
	ConnTimeout time.Duration
}

// ControllerConfig is the complete, typed configuration for one controller
// instance's data-plane façade.
type ControllerConfig struct {
	ControllerID   string
	PublicIdentity string

	Postgres PostgresConfig

	ListenMode   ListenMode
	StatusMode   StatusMode
	Redis        RedisConfig
	PubSub       PubSubConfig
	BigTable     BigTableConfig

	SSOEnabled bool
	SSOPSK     []byte // 48 bytes, hex-decoded, truncated/zero-padded

	RedisMemberStatus bool // ZT_REDIS_MEMBER_STATUS

	TemporalScheme    string
	TemporalHost      string
	TemporalPort      string
	TemporalNamespace string
	SmeeTaskQueue     string

	MinSchemaVersion int
}
