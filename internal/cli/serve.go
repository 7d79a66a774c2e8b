package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"hisaab/internal/amqp"
	"hisaab/internal/cache"
	"hisaab/internal/config"
	"hisaab/internal/events"
	apphttp "hisaab/internal/http"
	"hisaab/internal/idempotency"
	"hisaab/internal/log"
	"hisaab/internal/metrics"
	"hisaab/internal/middleware/ratelimit"
	"hisaab/internal/services"
	"hisaab/internal/session"
)

const (
	eventBuffer   = 32
	sweepInterval = time.Minute
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the JSON API server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := LoadConfig(configPath)
		if err != nil {
			return err
		}
		if err := cfg.RequireJWTSecret(); err != nil {
			return err
		}
		ctx, stop := SignalContext(cmd.Context())
		defer stop()
		return runServe(ctx, cfg, SetupLogger(cfg))
	},
}

func runServe(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	store, err := OpenStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Cleanup(); err != nil {
			logger.Warn("Failed to close store", log.FieldError, err)
		}
	}()

	sessions, err := session.NewManager(cfg.JWTSecret, cfg.JWTTTL)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	hub := events.NewHub(eventBuffer)
	hub.OnDrop(m.ObserveDrop)

	snapshots := cache.NewLRUCache[*services.Snapshot](cfg.SnapshotCacheSize, cfg.SnapshotCacheTTL)
	base := []services.Option{
		services.WithLocation(cfg.Location()),
		services.WithLogger(logger),
		services.WithMetrics(m),
	}
	views := services.NewViews(store.Store, snapshots, base...)

	// views must see a change before the writer returns
	publisher := events.MultiPublisher{views, hub}
	if cfg.AMQPEnabled() {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Warn("AMQP unavailable, spreadsheet mirror will not be notified", log.FieldError, err)
		} else {
			defer client.Close()
			publisher = append(publisher, client)
			logger.Info("Publishing changes to AMQP", "exchange", cfg.AMQPExchange)
		}
	}
	opts := append(base, services.WithPublisher(publisher))

	cleaners := []cache.Cleaner{snapshots}

	var idem *idempotency.Store
	if cfg.IdempotencyDBPath != "" {
		idem, err = idempotency.Open(cfg.IdempotencyDBPath, cfg.IdempotencyTTL)
		if err != nil {
			return err
		}
		defer idem.Close()
		cleaners = append(cleaners, idem)
		sessions.WithRevocations(idem)
	}

	var limiter *ratelimit.Limiter
	if cfg.RateLimitPerMinute > 0 {
		limiter = ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.RateLimitPerMinute})
		cleaners = append(cleaners, limiter)
	}

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Auth:         services.NewAuthService(store.Store, sessions, opts...),
		Sessions:     sessions,
		Transactions: services.NewTransactionService(store.Store, opts...),
		Loans:        services.NewLoanService(store.Store, opts...),
		Views:        views,
		Events:       hub,
		Idempotency:  idem,
		Metrics:      m,
		Limiter:      limiter,
		Ready:        store.Store,
		Logger:       logger,
		Location:     cfg.Location(),
		Currency:     cfg.Currency,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting hisaab server", "port", cfg.Port, "backend", cfg.DataBackend, "version", Version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return cache.NewJanitor(logger.WithComponent(log.ComponentCache).Logger, cleaners...).Run(gctx, sweepInterval)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("Server stopped gracefully")
	return nil
}
