package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/sitecraft/reminders/internal"
	"github.com/sitecraft/reminders/internal/email"
	"github.com/sitecraft/reminders/internal/events"
	"github.com/sitecraft/reminders/internal/handler"
	"github.com/sitecraft/reminders/internal/middleware"
	"github.com/sitecraft/reminders/internal/postgres"
	"github.com/sitecraft/reminders/internal/reminder"
	"github.com/sitecraft/reminders/internal/router"
	"github.com/sitecraft/reminders/internal/telemetry"
	"github.com/sitecraft/reminders/internal/worker"
)

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// The defaults ship with the binary; refuse to boot if they are broken.
	if err := reminder.ValidateTemplates(reminder.DefaultTemplates()); err != nil {
		return fmt.Errorf("built-in templates invalid: %w", err)
	}

	// Initialize database/sql connection for migrations
	logger.Info("Connecting to database...")
	sqlDB, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	// Run migrations
	logger.Info("Running database migrations...")
	if err := internal.RunMigrations(sqlDB); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Database migrations completed successfully")

	// Initialize pgx connection pool for application
	pool, err := pgxpool.New(ctx, cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}
	defer pool.Close()

	store := postgres.NewStore(pool)

	// Select the email provider
	sender := newSender(cfg, logger)
	logger.Info("Email provider initialized", "provider", sender.Name())

	// Connect the event publisher
	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.NATSURL != "" {
		natsPublisher, err := events.ConnectNATS(cfg.NATSURL)
		if err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		publisher = natsPublisher
		logger.Info("NATS publisher connected", "url", cfg.NATSURL)
	}
	defer publisher.Close()

	// Initialize services
	metrics := telemetry.NewMetrics("reminders")
	settingsService := reminder.NewSettingsService(store)
	scheduler := reminder.NewScheduler(store, settingsService, metrics, logger)
	dispatcher := reminder.NewDispatcher(
		store, settingsService, sender, publisher, metrics,
		reminder.NewRenderer(cfg.BaseURL), logger,
		cfg.Email.From, cfg.Email.FromName,
	)
	batch := reminder.NewBatchProcessor(store, dispatcher, metrics, logger)

	reminderHandler := handler.NewReminderHandler(store, settingsService, scheduler, dispatcher, batch, logger)

	// Create router and register routes
	httpMetrics := middleware.NewMetrics("reminders")
	r := router.New(
		router.Recovery(logger),
		middleware.RequestID,
		httpMetrics.Middleware,
		middleware.WithRequestLogger(logger),
		router.Logger(logger),
	)

	r.Post("/api/reminders", reminderHandler.HandleAction)

	// Metrics endpoint (protect via firewall in production)
	r.Get("/metrics", func(w http.ResponseWriter, req *http.Request) {
		httpMetrics.Handler().ServeHTTP(w, req)
	})

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Start the in-process worker when enabled
	if cfg.Worker.Enabled {
		w := worker.NewWorker(store, scheduler, batch, worker.Config{
			Interval: cfg.Worker.Interval,
		}, logger)
		go func() {
			if err := w.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("worker stopped", "error", err)
			}
		}()
	}

	// Start server
	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting reminder server", "address", addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	return nil
}

// newSender picks the outbound email implementation from config,
// falling back to the no-op sender when the configured provider is
// missing its credential.
func newSender(cfg *internal.Config, logger *slog.Logger) email.Sender {
	switch cfg.Email.Provider {
	case "postmark":
		if cfg.Email.PostmarkToken == "" {
			logger.Warn("POSTMARK_API_TOKEN not set, falling back to no-op sender")
			return email.NewNoopSender(logger)
		}
		return email.NewPostmarkSender(cfg.Email.PostmarkToken)
	case "sendgrid":
		if cfg.Email.SendGridKey == "" {
			logger.Warn("SENDGRID_API_KEY not set, falling back to no-op sender")
			return email.NewNoopSender(logger)
		}
		return email.NewSendGridSender(cfg.Email.SendGridKey)
	case "smtp":
		return email.NewSMTPSender(&email.SMTPConfig{
			Host:     cfg.Email.SMTPHost,
			Port:     int(cfg.Email.SMTPPort),
			Username: cfg.Email.SMTPUsername,
			Password: cfg.Email.SMTPPassword,
			From:     cfg.Email.From,
		})
	default:
		return email.NewNoopSender(logger)
	}
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
