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
)

const shutdownTimeout = 10 * time.Second

func newRootCmd() *cobra.Command {
	config := DefaultConfig()

	cmd := &cobra.Command{
		Use:   "updated-load-balancer",
		Short: "HTTP load balancer with health checking and sticky sessions",
		Long: `updated-load-balancer distributes inbound HTTP requests across a dynamic
pool of backend servers. It supports round-robin and least-connections
selection, cookie-based sticky sessions, active health probing and a
management API for runtime pool mutation and statistics.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), config)
		},
	}

	cmd.Flags().StringVar(&config.Algorithm, "algorithm", config.Algorithm,
		"balancing algorithm (round_robin or least_connections)")
	cmd.Flags().IntVar(&config.Port, "port", config.Port, "listen port")
	cmd.Flags().StringVar(&config.ServersFile, "servers", config.ServersFile,
		"path to the backend pool definition (JSON)")
	cmd.Flags().StringVar(&config.StaticDir, "static-dir", config.StaticDir,
		"directory holding the dashboard and static assets")
	cmd.Flags().DurationVar(&config.Session.TTL, "session-timeout", config.Session.TTL,
		"sticky session lifetime")
	cmd.Flags().DurationVar(&config.HealthCheck.Interval, "health-interval",
		config.HealthCheck.Interval, "delay between health check rounds")

	return cmd
}

func run(ctx context.Context, config *Config) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync()

	balancer, err := NewBalancer(config, logger)
	if err != nil {
		return err
	}
	balancer.Start()
	defer balancer.Close()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", config.Port),
		Handler:           balancer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("load balancer listening",
			zap.String("addr", srv.Addr), zap.String("algorithm", config.Algorithm))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server stopped with error: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
