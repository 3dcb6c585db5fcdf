package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/bigtable"
	"cloud.google.com/go/pubsub"
	"github.com/redis/go-redis/v9"

	"github.com/zerotier-like/controlplane/pkg/config"
	"github.com/zerotier-like/controlplane/pkg/controlplane"
	"github.com/zerotier-like/controlplane/pkg/listener"
	"github.com/zerotier-like/controlplane/pkg/model"
	"github.com/zerotier-like/controlplane/pkg/outbound"
	"github.com/zerotier-like/controlplane/pkg/publisher"
	"github.com/zerotier-like/controlplane/pkg/statussink"
)

func main() {
	addr := flag.String("addr", ":8080", "health/readiness listen address")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var redisClient redis.UniversalClient
	if cfg.ListenMode == model.ListenRedis || cfg.StatusMode == model.StatusRedis || cfg.RedisMemberStatus {
		redisClient = newRedisClient(cfg.Redis)
		defer redisClient.Close()
	}

	var pubsubClient *pubsub.Client
	if cfg.ListenMode == model.ListenPubSub {
		pubsubClient, err = newPubSubClient(ctx, cfg.PubSub)
		if err != nil {
			log.Fatalf("pubsub client: %v", err)
		}
		defer pubsubClient.Close()
	}

	statusSink, closeStatusSink, err := buildStatusSink(ctx, cfg)
	if err != nil {
		log.Fatalf("status sink: %v", err)
	}
	if closeStatusSink != nil {
		defer closeStatusSink()
	}

	opts := []controlplane.Option{controlplane.WithStatusSink(statusSink)}

	if pub := buildPublisher(cfg, pubsubClient); pub != nil {
		opts = append(opts, controlplane.WithPublisher(pub))
	}
	if hook := outbound.New(cfg.TemporalScheme, cfg.TemporalHost, cfg.TemporalPort, cfg.SmeeTaskQueue); hook != nil {
		opts = append(opts, controlplane.WithOutboundHook(hook))
	}
	if redisClient != nil {
		idx := controlplane.NewRedisSideIndex(redisClient)
		opts = append(opts, controlplane.WithRedisSideIndex(idx, cfg.RedisMemberStatus))
	}

	db, err := controlplane.New(ctx, cfg, buildTransportFactory(cfg, redisClient, pubsubClient), opts...)
	if err != nil {
		time.Sleep(time.Second)
		log.Fatalf("controlplane: %v", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if !db.IsReady() {
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("controlplane health server listening on %s", *addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("health server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Printf("controlplane shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)

	db.Close()
}

func buildTransportFactory(cfg model.ControllerConfig, redisClient redis.UniversalClient, pubsubClient *pubsub.Client) func(listener.Dispatcher) (listener.Listener, error) {
	switch cfg.ListenMode {
	case model.ListenPostgres:
		return func(d listener.Dispatcher) (listener.Listener, error) {
			networkChannel := fmt.Sprintf("network_%s", cfg.ControllerID)
			memberChannel := fmt.Sprintf("member_%s", cfg.ControllerID)
			return listener.NewPostgres(cfg.Postgres.DSN, networkChannel, memberChannel, d), nil
		}
	case model.ListenRedis:
		return func(d listener.Dispatcher) (listener.Listener, error) {
			return listener.NewRedis(redisClient, cfg.ControllerID, d), nil
		}
	case model.ListenPubSub:
		return func(d listener.Dispatcher) (listener.Listener, error) {
			return listener.NewPubSub(pubsubClient, cfg.ControllerID, cfg.PubSub.NetworkChangeTopic, cfg.PubSub.MemberChangeTopic, d), nil
		}
	default:
		return nil
	}
}

func buildPublisher(cfg model.ControllerConfig, pubsubClient *pubsub.Client) *publisher.Publisher {
	if pubsubClient == nil || cfg.PubSub.NetworkChangeTopic == "" {
		return nil
	}
	return publisher.New(pubsubClient, cfg.ControllerID, "controller", cfg.PubSub.NetworkChangeTopic, cfg.PubSub.MemberChangeTopic)
}

func buildStatusSink(ctx context.Context, cfg model.ControllerConfig) (statussink.Sink, func(), error) {
	switch cfg.StatusMode {
	case model.StatusRedis:
		cli := newRedisClient(cfg.Redis)
		return statussink.NewRedis(cli, cfg.ControllerID), func() { cli.Close() }, nil
	case model.StatusBigtable:
		client, err := bigtable.NewClient(ctx, cfg.BigTable.ProjectID, cfg.BigTable.InstanceID)
		if err != nil {
			return nil, nil, fmt.Errorf("bigtable client: %w", err)
		}
		sink := statussink.NewBigTable(client, cfg.BigTable.TableID, "status")
		return sink, func() { client.Close() }, nil
	default:
		// nil here tells controlplane.New to default to its own Postgres
		// sink, which shares the already-open gorm connection.
		return nil, nil, nil
	}
}

func newRedisClient(cfg model.RedisConfig) redis.UniversalClient {
	opts := &redis.UniversalOptions{
		Addrs:           []string{fmt.Sprintf("%s:%d", cfg.Hostname, cfg.Port)},
		Password:        cfg.Password,
		PoolSize:        cfg.PoolSize,
		PoolTimeout:     cfg.PoolWait,
		ConnMaxLifetime: cfg.ConnLifetime,
		ConnMaxIdleTime: cfg.ConnIdleTime,
	}
	if cfg.ClusterMode {
		return redis.NewUniversalClient(opts)
	}
	return redis.NewClient(opts.Simple())
}

func newPubSubClient(ctx context.Context, cfg model.PubSubConfig) (*pubsub.Client, error) {
	if cfg.EmulatorHost != "" {
		os.Setenv("PUBSUB_EMULATOR_HOST", cfg.EmulatorHost)
	}
	return pubsub.NewClient(ctx, cfg.ProjectID)
}
