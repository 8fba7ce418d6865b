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

	"github.com/dukerupert/splitcart/internal/archive"
	"github.com/dukerupert/splitcart/internal/config"
	"github.com/dukerupert/splitcart/internal/database"
	"github.com/dukerupert/splitcart/internal/email"
	"github.com/dukerupert/splitcart/internal/logging"
	"github.com/dukerupert/splitcart/internal/metrics"
	"github.com/dukerupert/splitcart/internal/middleware"
	"github.com/dukerupert/splitcart/internal/notify"
	"github.com/dukerupert/splitcart/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.Setup(cfg.LogLevel)

	db, err := database.OpenDialect(cfg.Dialect(), cfg.DBDSN)
	if err != nil {
		logger.Error("failed to open database", "driver", cfg.DBDriver, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	m := metrics.New()

	mailer := email.NewClient(cfg.ResendAPIKey, cfg.FromEmail, cfg.BaseURL)
	if !mailer.Configured() {
		logger.Warn("email not configured, notifications disabled")
	}
	trigger := notify.NewTrigger(mailer, cfg.NotifyRecipients, logger.With("component", "notify"), m)

	exporter := archive.NewExporter(archive.S3Config{
		Endpoint:  cfg.S3.Endpoint,
		Bucket:    cfg.S3.Bucket,
		Region:    cfg.S3.Region,
		AccessKey: cfg.S3.AccessKey,
		SecretKey: cfg.S3.SecretKey,
	}, logger.With("component", "archive"), m)

	srv := server.New(db, trigger, exporter, m, server.Options{
		Gate: middleware.GateConfig{
			User:         cfg.GateUser,
			PasswordHash: cfg.GatePasswordHash,
		},
		WSOriginPatterns: cfg.WSOriginPatterns,
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go srv.RateLimiter().RunCleanup(ctx, 5*time.Minute)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("splitcart running",
			"addr", "http://localhost:"+cfg.Port,
			"db", cfg.DBDriver,
			"archive", exporter.Enabled(),
			"gate", cfg.GateEnabled(),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	srv.Hub().Shutdown()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	// Let in-flight notices and receipt uploads finish before the DB closes.
	trigger.Wait()
	exporter.Wait()
}
