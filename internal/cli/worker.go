package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"hisaab/internal/amqp"
	"hisaab/internal/config"
	"hisaab/internal/log"
	"hisaab/internal/metrics"
	gsheet "hisaab/internal/sheets/google"
	"hisaab/internal/worker"
)

func init() {
	rootCmd.AddCommand(workerCmd)
	workerCmd.Flags().String("metrics-addr", "", "Serve /metrics on this address (e.g. :9091)")
	workerCmd.Flags().StringSlice("resync", nil, "Mirror these user ids once at startup")
}

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Mirror ledgers to Google Sheets from AMQP change messages",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := LoadConfig(configPath)
		if err != nil {
			return err
		}
		if !cfg.AMQPEnabled() {
			return errors.New("worker needs AMQP_URL")
		}
		if err := cfg.RequireSheets(); err != nil {
			return err
		}
		metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
		resync, _ := cmd.Flags().GetStringSlice("resync")

		ctx, stop := SignalContext(cmd.Context())
		defer stop()
		return runWorker(ctx, cfg, SetupLogger(cfg), metricsAddr, resync)
	},
}

func runWorker(ctx context.Context, cfg *config.Config, logger *log.Logger, metricsAddr string, resync []string) error {
	logger.Info("Starting hisaab worker", "queue", cfg.AMQPQueue, "version", Version)

	store, err := OpenStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Cleanup()

	creds, err := gsheet.LoadCredentials(cfg.GoogleServiceAccountJSON, cfg.GoogleServiceAccountFile)
	if err != nil {
		return err
	}
	mirror, err := gsheet.NewFromCredentials(ctx, cfg.GoogleSpreadsheetID, creds)
	if err != nil {
		return err
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		return fmt.Errorf("connect to AMQP: %w", err)
	}
	defer client.Close()

	m := metrics.New(prometheus.NewRegistry())
	w := worker.NewSyncWorker(store.Store, mirror, m, logger)

	for _, owner := range resync {
		if err := w.SyncOwner(ctx, owner); err != nil {
			logger.Error("Startup resync failed", log.FieldUserID, owner, log.FieldError, err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := client.Consume(gctx, cfg.SyncMaxRetries, w.HandleLedgerChanged)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	if metricsAddr != "" {
		srv := &http.Server{Addr: metricsAddr, Handler: m.Handler(), ReadHeaderTimeout: 10 * time.Second}
		g.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("Worker stopped")
	return nil
}
