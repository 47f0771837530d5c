package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"domino-hall/internal/bus"
	"domino-hall/internal/config"
	"domino-hall/internal/logging"
	"domino-hall/internal/matchmaking"
	"domino-hall/internal/session"
	"domino-hall/internal/store"
	"domino-hall/internal/tournament"
	httptransport "domino-hall/internal/transport/http"
	"domino-hall/internal/transport/ws"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.LoadApp()
	if err != nil {
		panic(err)
	}
	if err := logging.Init(cfg.Log); err != nil {
		panic(err)
	}
	defer logging.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg.Server); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func run(ctx context.Context, cfg config.ServerConfig) error {
	snapshots, events, closeShared, err := openShared(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeShared()

	var (
		history     *store.Store
		gameHistory session.HistoryRecorder
		cupHistory  tournament.Recorder
		historyRead httptransport.HistoryReader
	)
	if cfg.PostgresDSN != "" {
		history, err = store.New(cfg.PostgresDSN)
		if err != nil {
			return err
		}
		defer history.Close()
		if err := history.Ping(ctx); err != nil {
			return err
		}
		if cfg.MigrateOnStart {
			if err := history.Migrate(ctx); err != nil {
				return err
			}
		}
		gameHistory, cupHistory, historyRead = history, history, history
	} else {
		log.Warn().Msg("POSTGRES_DSN not set, finished games are not recorded")
	}

	reg := session.New(session.Options{
		Origin:    cfg.InstanceID,
		Snapshots: snapshots,
		Bus:       events,
		History:   gameHistory,
	})
	defer reg.Close()
	if err := reg.Listen(ctx); err != nil {
		return err
	}

	queue := matchmaking.New(reg, matchmaking.Options{Interval: cfg.MatchInterval, AutoStartDelay: cfg.AutoStartDelay})
	go queue.Run(ctx)

	cups := tournament.New(reg, tournament.Options{AutoStartDelay: cfg.AutoStartDelay, History: cupHistory})
	defer cups.Stop()
	if err := cups.Listen(ctx, events); err != nil {
		return err
	}

	hub := ws.NewHub(events, reg, ws.Options{
		AllowAnyOrigin: cfg.WSAllowAnyOrigin,
		WriteTimeout:   cfg.WSWriteTimeout,
		PingInterval:   cfg.WSPingInterval,
	})
	defer hub.Close()

	deps := httptransport.Deps{
		Registry:    reg,
		Matchmaking: queue,
		Tournaments: cups,
		History:     historyRead,
		Push:        hub,
	}
	if history != nil {
		deps.Health = history.Ping
	}
	r := httptransport.NewRouter(deps, cfg)
	httptransport.LogRoutes(r)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Str("origin", reg.Origin()).Msg("http listening")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	hub.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// openShared picks Redis for snapshots and the bus when REDIS_URL is set,
// otherwise in-process stand-ins that only serve a single instance.
func openShared(ctx context.Context, cfg config.ServerConfig) (store.SnapshotStore, bus.Bus, func(), error) {
	if cfg.RedisURL == "" {
		log.Warn().Msg("REDIS_URL not set, running single-instance on in-memory snapshots and bus")
		events := bus.NewMemory()
		return store.NewMemorySnapshots(cfg.SnapshotTTL), events, func() { _ = events.Close() }, nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, nil, err
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, nil, err
	}
	events := bus.NewRedis(client, cfg.RedisKeyPrefix)
	snapshots := store.NewRedisSnapshots(client, cfg.SnapshotTTL, cfg.RedisKeyPrefix+"game:")
	return snapshots, events, func() {
		_ = events.Close()
		_ = client.Close()
	}, nil
}
