// Package config loads the data-plane façade's configuration from
// environment variables (optionally seeded from a .env file), the way
// the teacher's pkg/db package loads MySQL connection settings.
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/zerotier-like/controlplane/pkg/model"
)

// MinSchemaVersion is the compiled-in minimum relational-store schema
// version this build understands. The façade refuses to start against an
// older schema (spec.md §6/§7, SchemaTooOld).
const MinSchemaVersion = 1

// Load reads configuration from the environment (after optionally
// loading a .env file in the current directory) and returns a fully
// populated ControllerConfig.
func Load() (model.ControllerConfig, error) {
	_ = loadDotEnv()

	cfg := model.ControllerConfig{
		ControllerID:     getenv("ZT_CONTROLLER_ID", "controller-1"),
		PublicIdentity:   os.Getenv("ZT_PUBLIC_IDENTITY"),
		MinSchemaVersion: MinSchemaVersion,
	}

	cfg.Postgres = model.PostgresConfig{
		DSN:         getenv("ZT_POSTGRES_DSN", "postgres://localhost:5432/zt_controller?sslmode=disable"),
		MaxConns:    int32(getenvInt("ZT_POSTGRES_MAX_CONNS", 10)),
		MinConns:    int32(getenvInt("ZT_POSTGRES_MIN_CONNS", 0)),
		ConnTimeout: 3 * time.Second,
	}

	switch mode := model.ListenMode(getenv("ZT_LISTEN_MODE", string(model.ListenPostgres))); mode {
	case model.ListenPostgres, model.ListenRedis, model.ListenPubSub:
		cfg.ListenMode = mode
	default:
		return cfg, fmt.Errorf("config: unsupported ZT_LISTEN_MODE %q", mode)
	}

	switch mode := model.StatusMode(getenv("ZT_STATUS_MODE", string(model.StatusPostgres))); mode {
	case model.StatusPostgres, model.StatusRedis, model.StatusBigtable:
		cfg.StatusMode = mode
	default:
		return cfg, fmt.Errorf("config: unsupported ZT_STATUS_MODE %q", mode)
	}

	cfg.Redis = model.RedisConfig{
		Hostname:     getenv("ZT_REDIS_HOST", "127.0.0.1"),
		Port:         getenvInt("ZT_REDIS_PORT", 6379),
		Password:     os.Getenv("ZT_REDIS_PASSWORD"),
		ClusterMode:  getenvBool("ZT_REDIS_CLUSTER_MODE", false),
		PoolSize:     25,
		PoolWait:     5 * time.Second,
		ConnLifetime: 3 * time.Minute,
		ConnIdleTime: 1 * time.Minute,
	}

	cfg.PubSub = model.PubSubConfig{
		ProjectID:          os.Getenv("ZT_PUBSUB_PROJECT_ID"),
		MemberChangeTopic:  getenv("ZT_PUBSUB_MEMBER_CHANGE_TOPIC", "member-change"),
		NetworkChangeTopic: getenv("ZT_PUBSUB_NETWORK_CHANGE_TOPIC", "network-change"),
		MemberStatusTopic:  getenv("ZT_PUBSUB_MEMBER_STATUS_TOPIC", "member-status"),
		EmulatorHost:       os.Getenv("PUBSUB_EMULATOR_HOST"),
	}

	cfg.BigTable = model.BigTableConfig{
		ProjectID:  os.Getenv("ZT_BIGTABLE_PROJECT_ID"),
		InstanceID: os.Getenv("ZT_BIGTABLE_INSTANCE_ID"),
		TableID:    getenv("ZT_BIGTABLE_TABLE_ID", "member-status"),
	}

	cfg.SSOEnabled = getenvBool("ZT_SSO_ENABLED", false)
	if psk := os.Getenv("ZT_SSO_PSK"); psk != "" {
		cfg.SSOPSK = decodeSSOPSK(psk)
	}

	cfg.RedisMemberStatus = getenvBool("ZT_REDIS_MEMBER_STATUS", false)

	cfg.TemporalScheme = getenv("ZT_TEMPORAL_SCHEME", "http")
	cfg.TemporalHost = os.Getenv("ZT_TEMPORAL_HOST")
	cfg.TemporalPort = getenv("ZT_TEMPORAL_PORT", "7233")
	cfg.TemporalNamespace = getenv("ZT_TEMPORAL_NAMESPACE", "default")
	cfg.SmeeTaskQueue = os.Getenv("ZT_SMEE_TASK_QUEUE")

	return cfg, nil
}

// decodeSSOPSK decodes a hex-encoded pre-shared key, truncating or
// zero-padding to exactly 48 bytes per spec.md §6.
func decodeSSOPSK(hexStr string) []byte {
	decoded, err := hex.DecodeString(hexStr)
	if err != nil {
		return make([]byte, 48)
	}
	out := make([]byte, 48)
	copy(out, decoded)
	return out
}

func loadDotEnv() error {
	if _, err := os.Stat(".env"); err == nil {
		return godotenv.Load(".env")
	}
	return nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getenvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
