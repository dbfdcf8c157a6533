package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/partydeck/game-server/config"
	"github.com/partydeck/game-server/internal/broadcast"
	"github.com/partydeck/game-server/internal/logger"
	"github.com/partydeck/game-server/internal/persist"
	"github.com/partydeck/game-server/internal/postgres"
	"github.com/partydeck/game-server/internal/registry"
	"github.com/partydeck/game-server/internal/room"
	httpx "github.com/partydeck/game-server/internal/transport/http"
	"github.com/partydeck/game-server/internal/transport/ws"
)

func main() {
	// --- config ---
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger.Init(logger.Config{
		Service:   cfg.Logging.Service,
		Version:   cfg.Logging.Version,
		Env:       cfg.Logging.Env,
		Backend:   logger.Backend(cfg.Logging.Backend),
		AddSource: cfg.Logging.AddSource,
		Debug:     cfg.Logging.Debug,
	})
	slog.Info("starting game-server", "env", cfg.Logging.Env, "version", cfg.Logging.Version)

	// --- postgres ---
	ctx := context.Background()
	if err := postgres.Migrate(cfg.Postgres.DSN, slog.Default()); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	pool, err := postgres.NewPool(ctx, postgres.PoolConfig{
		DSN:             cfg.Postgres.DSN,
		MaxConns:        cfg.Postgres.MaxConns,
		MinConns:        cfg.Postgres.MinConns,
		ApplicationName: cfg.Logging.Service,
	})
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	outcomeRepo := postgres.NewOutcomeRepository(pool)

	// --- core: one registry/store pair per process ---
	writer := persist.NewWriter(outcomeRepo, persist.WriterConfig{
		QueueSize:  cfg.Persist.QueueSize,
		MaxElapsed: cfg.Persist.MaxElapsed,
	}, slog.Default())

	reg := registry.New()
	store := room.NewStore()
	disp := broadcast.NewDispatcher(reg, slog.Default())
	manager := room.NewManager(store, reg, disp, writer, nil, room.ManagerConfig{
		CodeLength:      cfg.Room.CodeLength,
		DefaultCapacity: cfg.Room.DefaultCapacity,
		MaxCapacity:     cfg.Room.MaxCapacity,
		MinParticipants: cfg.Room.MinParticipants,
	}, slog.Default())
	disp.OnDrop(manager.Disconnect)

	// --- transports ---
	wsServer := ws.NewServer(reg, manager, cfg.WS.PingInterval, cfg.WS.SendBuffer, slog.Default())
	handler := httpx.NewHandler(manager, outcomeRepo)
	router := httpx.NewRouter(handler, wsServer)

	httpSrv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http listen", "addr", cfg.HTTP.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// --- graceful shutdown: stop accepting, drain sockets, flush outcomes ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal", "sig", sig)
	case err := <-errCh:
		slog.Error("server error", "err", err)
	}

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = httpSrv.Shutdown(ctxShutdown)
	reg.Drain()
	if err := writer.Close(ctxShutdown); err != nil {
		slog.Warn("outcome flush incomplete", "err", err)
	}
	slog.Info("stopped")
}
