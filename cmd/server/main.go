package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	apphttp "github.com/fardannozami/wa-multisession/internal/app/http"
	"github.com/fardannozami/wa-multisession/internal/app/usecase"
	"github.com/fardannozami/wa-multisession/internal/config"
	"github.com/fardannozami/wa-multisession/internal/infra/media"
	"github.com/fardannozami/wa-multisession/internal/infra/metrics"
	"github.com/fardannozami/wa-multisession/internal/infra/qr"
	"github.com/fardannozami/wa-multisession/internal/infra/wa"
	"github.com/fardannozami/wa-multisession/internal/infra/webhook"
	"github.com/gin-gonic/gin"
	"github.com/heptiolabs/healthcheck"
	"github.com/spf13/cobra"
	walog "go.mau.fi/whatsmeow/util/log"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := config.New()
	var envFile string

	cmd := &cobra.Command{
		Use:   "wa-multisession",
		Short: "Multi-session WhatsApp gateway",
		Long: `Runs one WhatsApp connection per user, restores them from disk on start,
forwards their events to a webhook and exposes an HTTP API to drive them.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadEnvFile(envFile); err != nil {
				return err
			}
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	cmd.Flags().String("port", "", "HTTP port (env PORT)")
	cmd.Flags().String("sessions-dir", "", "credential root directory (env SESSIONS_DIR)")
	_ = v.BindPFlag("port", cmd.Flags().Lookup("port"))
	_ = v.BindPFlag("sessions_dir", cmd.Flags().Lookup("sessions-dir"))

	return cmd
}

func run(ctx context.Context, cfg config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := walog.Stdout("WA", cfg.LogLevel, true)
	m := metrics.New()

	dispatcher := webhook.NewDispatcher(webhook.Config{
		URL:       cfg.WebhookURL,
		Secret:    cfg.WebhookSecret,
		Timeout:   cfg.WebhookTimeout,
		QueueSize: uint64(cfg.WebhookQueueSize),
	}, logger.Sub("Webhook"), m)
	if !dispatcher.Enabled() {
		logger.Warnf("WEBHOOK_URL is not set, notifications are discarded")
	}

	manager := wa.NewManager(wa.Options{
		Root:     cfg.SessionsDir,
		Notifier: dispatcher,
		Fetcher:  media.NewFetcher(cfg.MediaTimeout, cfg.MediaMaxBytes),
		RenderQR: qr.DataURL,
		Metrics:  m,
		Log:      logger,
		Workers:  cfg.RestoreWorkers,
	})

	var restored atomic.Bool
	health := healthcheck.NewHandler()
	health.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(10000))
	health.AddReadinessCheck("sessions-restored", func() error {
		if !restored.Load() {
			return errors.New("restoring sessions")
		}
		return nil
	})

	restoreDone := make(chan struct{})
	go func() {
		defer close(restoreDone)
		defer restored.Store(true)
		if _, err := manager.RestoreSessions(ctx); err != nil {
			logger.Errorf("restore sessions: %v", err)
		}
	}()

	handler := apphttp.NewHandler(apphttp.Usecases{
		Init:        usecase.NewInitSessionUsecase(manager),
		GetCode:     usecase.NewGetCodeUsecase(manager),
		SendText:    usecase.NewSendTextUsecase(manager),
		SendBulk:    usecase.NewSendBulkUsecase(manager, cfg.BulkDelayMin, cfg.BulkDelayMax),
		SendMedia:   usecase.NewSendMediaUsecase(manager),
		Status:      usecase.NewStatusUsecase(manager),
		Disconnect:  usecase.NewDisconnectUsecase(manager),
		Contact:     usecase.NewContactUsecase(manager),
		ListSession: usecase.NewListSessionsUsecase(manager),
	}, qr.DataURL, logger.Sub("HTTP"))

	gin.SetMode(gin.ReleaseMode)
	router := apphttp.NewRouter(handler, apphttp.RouterOptions{
		APIKey:  cfg.APIKey,
		Health:  health,
		Metrics: m.Handler(),
		Log:     logger.Sub("HTTP"),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("HTTP listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Infof("shutting down")
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}
	drainAfterRestore(shutdownCtx, restoreDone, manager, logger)
	dispatcher.Close(shutdownCtx)

	if serveErr != nil {
		return fmt.Errorf("http server: %w", serveErr)
	}
	return nil
}

// drainAfterRestore waits for the restore pass before draining: a session
// restored after Drain took its snapshot would never be closed.
func drainAfterRestore(ctx context.Context, restoreDone <-chan struct{}, manager *wa.Manager, log walog.Logger) {
	select {
	case <-restoreDone:
	case <-ctx.Done():
		log.Warnf("restore still running at shutdown deadline")
	}
	manager.Drain(ctx)
}
