package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/burnbox/server/internal/api/http/handler"
	"github.com/burnbox/server/internal/api/http/router"
	"github.com/burnbox/server/internal/config"
	"github.com/burnbox/server/internal/logger"
	"github.com/burnbox/server/internal/metrics"
	"github.com/burnbox/server/internal/model"
	"github.com/burnbox/server/internal/reaper"
	"github.com/burnbox/server/internal/server"
	"github.com/burnbox/server/internal/service"
	storage "github.com/burnbox/server/internal/storage/minio"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the secret exchange HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd)
		},
	}
}

func runServe(cmd *cobra.Command) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, os.Interrupt)
	defer stop()

	cfg, err := config.NewConfig()
	if err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	logger := logger.New(cfg.LogLevel)

	be, err := openBackend(cmd, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer be.store.Close()

	blobs, err := openBlobStorage(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize blob storage: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	m := metrics.New(registry)

	secretService := service.NewSecret(be.store, blobs, logger, cfg.Secret.DefaultMaxViews, cfg.Blob.InlineMaxBytes)
	reminderService := service.NewReminder(be.store, be.ledger, nil, logger, m)

	defaultPolicy := model.ReminderPolicy{
		OlderThan:    time.Duration(cfg.Reminder.OlderThanHours) * time.Hour,
		MaxReminders: cfg.Reminder.MaxReminders,
		Interval:     time.Duration(cfg.Reminder.IntervalHours) * time.Hour,
	}

	mux := router.New(router.Config{
		Secrets:   handler.NewSecretHandler(secretService, logger),
		Reminders: handler.NewReminderHandler(reminderService, defaultPolicy, logger),
		Store:     be.store,
		Logger:    logger,
		Metrics:   m,
		Registry:  registry,
	})

	httpServer := server.NewHTTPServer(mux, fmt.Sprintf(":%s", cfg.HTTP.Port))

	var sl model.SecurityLayer
	if cfg.HTTP.EnableHTTPS {
		sl = server.NewTLSListener(cfg.HTTP.CertFileName, cfg.HTTP.PrivateKeyFileName)
	} else {
		sl = server.NewPlainListener()
	}

	gc := reaper.New(be.store, blobs, reaper.Config{
		Interval:       cfg.Reaper.Interval,
		ExhaustedGrace: cfg.Reaper.ExhaustedGrace,
		Retention:      cfg.Reaper.Retention,
	}, logger)

	var wg sync.WaitGroup
	wg.Add(1)
	go func(s model.Server) {
		defer wg.Done()
		logger.Info("starting server", "address", s.Address())
		if err := s.Start(sl); err != nil {
			logger.Error("failed to start server", "error", err)
			stop()
		}
	}(httpServer)

	wg.Add(1)
	go func() {
		defer wg.Done()
		gc.Run(ctx)
	}()

	logger.Info("build info", "version", buildVersion, "date", buildDate, "commit", buildCommit)

	<-ctx.Done()
	logger.Info("received interruption signal, shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Error("error during server shutdown", "error", err, "address", httpServer.Address())
	}

	wg.Wait()
	logger.Info("shutdown complete")

	return nil
}

func openBlobStorage(ctx context.Context, cfg *config.Config) (model.Storage, error) {
	if !cfg.Blob.Enabled {
		return nil, nil
	}

	minioClient, err := minio.New(cfg.Blob.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.Blob.AccessKey, cfg.Blob.SecretKey, ""),
		Secure: cfg.Blob.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return storage.NewClient(ctx, minioClient, cfg.Blob.Bucket)
}
