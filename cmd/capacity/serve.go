package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/warp/capacity-engine/api"
	"github.com/warp/capacity-engine/metrics"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.migrator(app.ctx); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}

			handler := api.NewHandler(app.engine, app.store, app.logger)
			server := &http.Server{
				Addr:         fmt.Sprintf(":%d", app.cfg.Server.Port),
				Handler:      api.NewRouter(handler, metrics.Registry),
				ReadTimeout:  15 * time.Second,
				WriteTimeout: 15 * time.Second,
				IdleTimeout:  60 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				app.logger.Info("Server starting", zap.Int("port", app.cfg.Server.Port))
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()

			// Wait for interrupt signal
			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			select {
			case err := <-errCh:
				return fmt.Errorf("server failed: %w", err)
			case <-quit:
			}

			app.logger.Info("Shutting down server")
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := server.Shutdown(ctx); err != nil {
				return fmt.Errorf("server forced to shutdown: %w", err)
			}
			app.logger.Info("Server stopped")
			return nil
		},
	}
	cmd.Flags().Int("port", 0, "HTTP server port (overrides config)")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.migrator(app.ctx); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}
			app.logger.Info("Migrations applied", zap.String("driver", app.cfg.Database.Driver))
			return nil
		},
	}
}
