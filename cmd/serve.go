package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/modelwatch/modelwatch/internal/api"
	"github.com/modelwatch/modelwatch/internal/config"
	"github.com/modelwatch/modelwatch/internal/fetcher"
	"github.com/modelwatch/modelwatch/internal/logging"
	"github.com/modelwatch/modelwatch/internal/progress"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the modelwatch HTTP service.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(parent context.Context) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The tracker is constructed once here and handed to both the download
	// workers and the HTTP handlers.
	tracker := progress.New(progress.Config{
		ChannelBuffer:     cfg.Stream.ChannelBuffer,
		HeartbeatInterval: cfg.Heartbeat(),
	}, logger.Named("progress"))

	queue := fetcher.NewQueue(cfg.Fetcher.QueueDepth)
	pool := fetcher.NewPool(queue, tracker, fetcher.Config{
		Workers:   cfg.Fetcher.Concurrency,
		DestDir:   cfg.Fetcher.DestDir,
		UserAgent: cfg.Fetcher.UserAgent,
		Timeout:   cfg.FetchTimeout(),
	}, logger.Named("fetcher"))

	apiServer := api.NewServer(tracker, queue, cfg, logger.Named("api"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	poolDone := make(chan struct{})
	go func() {
		defer close(poolDone)
		logger.Info("download workers started", zap.Int("workers", cfg.Fetcher.Concurrency))
		pool.Run(ctx)
	}()

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	queue.Close()
	<-poolDone
	logger.Info("shutdown complete")
	return nil
}
