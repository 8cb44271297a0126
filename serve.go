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

	"campusvote/config"
	"campusvote/db"
	"campusvote/handlers"
	"campusvote/middleware"
	"campusvote/notifications"
	"campusvote/routes"
	"campusvote/voting"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const resetCleanupInterval = 5 * time.Minute

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (default)",
		RunE:  serveRun,
	}
}

func serveRun(cmd *cobra.Command, _ []string) error {
	cfg := config.FromContext(cmd.Context())
	if cfg == nil {
		return errors.New("no config found in context")
	}
	logger := commonRun(cfg)
	if !globalFlags.debug && !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	conn, err := db.Open(cfg.Database)
	if err != nil {
		return err
	}
	if sqlDB, err := conn.DB(); err == nil {
		defer sqlDB.Close()
	}
	if err := db.Migrate(conn); err != nil {
		return err
	}
	logger.Info("database ready", "driver", cfg.Database.Driver)

	var registry *prometheus.Registry
	opts := voting.Options{Logger: logger}
	if cfg.Metrics {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		opts.Metrics = voting.NewMetrics(registry)
	}
	if cfg.APNS.Enabled() {
		notifier, err := notifications.NewAPNSNotifier(cfg.APNS, conn, logger)
		if err != nil {
			return fmt.Errorf("failed to set up push notifications: %w", err)
		}
		opts.Notifier = notifier
		logger.Info("push notifications enabled", "topic", cfg.APNS.Topic, "production", cfg.APNS.Production)
	}

	reset := handlers.NewPasswordReset(conn, handlers.NewMailer(cfg.SMTP, logger), logger)
	svc := voting.New(conn, opts)
	router := routes.NewRouter(routes.Deps{
		DB:          conn,
		Voting:      svc,
		Tokens:      middleware.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
		Reset:       reset,
		Logger:      logger,
		AllowOrigin: cfg.Server.AllowOrigin,
		PhotoDir:    cfg.Server.PhotoDir,
		Registry:    registry,
	})
	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		reset.Run(gctx, resetCleanupInterval)
		return nil
	})
	g.Go(func() error {
		logger.Info("listening", "address", cfg.Server.Address)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	err = g.Wait()
	svc.Elections.Wait()
	return err
}
