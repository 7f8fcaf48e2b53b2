package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/weftlabs/weft/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the engine with its HTTP API and trigger loops",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger, err := newLogger(cfg)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		eng, err := buildEngine(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer eng.Store().Close()

		if err := eng.Start(ctx); err != nil {
			return fmt.Errorf("start engine: %w", err)
		}

		srv := &http.Server{
			Addr:              cfg.Listen,
			Handler:           api.NewServer(eng).Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			logger.Info("http server listening", slog.String("addr", cfg.Listen))
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		select {
		case err := <-errCh:
			_ = eng.Stop(context.Background())
			return fmt.Errorf("http server: %w", err)
		case sig := <-sigCh:
			logger.Info("shutting down", slog.String("signal", sig.String()))
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), eng.Config().ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown error", slog.String("error", err.Error()))
		}
		return eng.Stop(shutdownCtx)
	},
}
