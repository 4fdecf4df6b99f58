package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/efreitasn/papertrade/internal/broadcast"
	"github.com/efreitasn/papertrade/internal/catalog"
	"github.com/efreitasn/papertrade/internal/config"
	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/efreitasn/papertrade/internal/engine"
	"github.com/efreitasn/papertrade/internal/handler"
	"github.com/efreitasn/papertrade/internal/service"
	"github.com/efreitasn/papertrade/internal/store"
	"github.com/efreitasn/papertrade/internal/store/sqlite"
)

func main() {
	healthcheck := flag.Bool("healthcheck", false, "Run health check against running server")
	flag.Parse()

	// Handle -healthcheck flag: HTTP GET to localhost:PORT/healthz, exit 0/1.
	if *healthcheck {
		port := os.Getenv("PORT")
		if port == "" {
			port = "8080"
		}
		resp, err := http.Get(fmt.Sprintf("http://localhost:%s/healthz", port))
		if err != nil || resp.StatusCode != http.StatusOK {
			os.Exit(1)
		}
		os.Exit(0)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// backends groups the store implementations selected by configuration.
type backends struct {
	instruments store.Instruments
	users       store.Users
	ledger      store.Ledger
	events      store.Events
	closer      io.Closer
}

func openBackends(cfg *config.Config, logger *slog.Logger) (*backends, error) {
	if cfg.DatabasePath == "" {
		logger.Info("using in-memory stores")
		ledger := store.NewLedgerStore()
		return &backends{
			instruments: store.NewInstrumentStore(),
			users:       store.NewUserStore(ledger),
			ledger:      ledger,
			events:      store.NewEventStore(),
		}, nil
	}

	db, err := sqlite.Open(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	logger.Info("using sqlite stores", slog.String("path", cfg.DatabasePath))
	return &backends{
		instruments: db.Instruments(),
		users:       db.Users(),
		ledger:      db.Ledger(),
		events:      db.Events(),
		closer:      db,
	}, nil
}

// originChecker accepts websocket upgrades from the configured CORS
// origins. A "*" entry accepts any origin.
func originChecker(origins []string) func(*http.Request) bool {
	if len(origins) == 0 || slices.Contains(origins, "*") {
		return nil
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(origins, origin)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b, err := openBackends(cfg, logger)
	if err != nil {
		return err
	}
	if b.closer != nil {
		defer func() {
			if err := b.closer.Close(); err != nil {
				logger.Error("closing database", slog.String("error", err.Error()))
			}
		}()
	}

	seeds, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return err
	}

	// Broadcast: websocket hub, plus Kafka when brokers are configured.
	hub := broadcast.NewHub(logger, originChecker(cfg.CORSOrigins))
	go hub.Run(ctx)

	sinks := []broadcast.Sink{hub}
	if cfg.KafkaEnabled() {
		kafka, err := broadcast.NewKafkaPublisher(broadcast.KafkaConfig{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaTopic,
		}, logger)
		if err != nil {
			return err
		}
		defer func() {
			if err := kafka.Close(); err != nil {
				logger.Error("closing kafka publisher", slog.String("error", err.Error()))
			}
		}()
		sinks = append(sinks, kafka)
	}
	publisher := broadcast.NewFanout(logger, sinks...)

	// Engine.
	sim := engine.NewSimulator(engine.SimulatorConfig{
		Volatility:   cfg.Volatility,
		PriceFloor:   cfg.PriceFloor,
		HistoryLimit: cfg.HistoryLimit,
	}, b.instruments, publisher, engine.DefaultRandom(), logger)
	shocks := engine.NewShockApplier(b.instruments, publisher, engine.ShockConfig{
		Mode:         cfg.ShockMode,
		PriceFloor:   cfg.PriceFloor,
		HistoryLimit: cfg.HistoryLimit,
	}, logger)
	trader := engine.NewTrader(b.instruments, b.users, logger)

	now := time.Now()
	instruments := make([]*domain.Instrument, 0, len(seeds))
	for _, s := range seeds {
		instruments = append(instruments, s.Instrument(now))
	}
	if _, err := sim.Initialize(ctx, instruments); err != nil {
		return err
	}

	// Services.
	svc := handler.Services{
		Accounts:    service.NewAccountService(b.users, b.instruments, trader, cfg.InitialBalance, logger),
		Market:      service.NewMarketService(b.instruments, sim, cfg.TickInterval),
		Ledger:      service.NewLedgerService(b.ledger, b.users),
		Leaderboard: service.NewLeaderboardService(b.users, b.instruments, cfg.InitialBalance),
		Events:      service.NewEventService(b.events, shocks, logger),
	}
	router := handler.NewRouter(svc, handler.Options{
		WebSocket:   hub,
		Clients:     hub,
		CORSOrigins: cfg.CORSOrigins,
	}, logger)

	if _, err := sim.Start(ctx, cfg.TickInterval); err != nil {
		return err
	}
	defer sim.Stop()

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for SIGINT/SIGTERM or a listener failure.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-errCh:
		return err
	}

	// Graceful shutdown: stop the price loop, then drain HTTP.
	sim.Stop()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.String("error", err.Error()))
	}
	cancel()

	logger.Info("server stopped")
	return nil
}
