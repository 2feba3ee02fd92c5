package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"

	"github.com/UjjawalMishra93/civic-issue-system/internal/api/handlers/citizen"
	"github.com/UjjawalMishra93/civic-issue-system/internal/api/middleware"
	"github.com/UjjawalMishra93/civic-issue-system/internal/api/routes"
	"github.com/UjjawalMishra93/civic-issue-system/internal/config"
	"github.com/UjjawalMishra93/civic-issue-system/internal/core/dashboard"
	"github.com/UjjawalMishra93/civic-issue-system/internal/core/issues"
	"github.com/UjjawalMishra93/civic-issue-system/internal/core/upvotes"
	postgresRepo "github.com/UjjawalMishra93/civic-issue-system/internal/db/postgres"
	"github.com/UjjawalMishra93/civic-issue-system/internal/notifications"
	"github.com/UjjawalMishra93/civic-issue-system/internal/realtime"
)

func main() {
	cfg := config.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return err
	}
	logger.Info("connected to database")

	// Run migrations
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	if err := goose.Up(db, cfg.MigrationsDir); err != nil {
		return err
	}
	logger.Info("migrations completed", "dir", cfg.MigrationsDir)

	// Initialize repositories and services
	hub := realtime.NewHub(logger)
	issueRepo := postgresRepo.NewIssueRepository(db)
	upvoteRepo := postgresRepo.NewUpvoteRepository(db)
	issueService := issues.NewService(issueRepo, upvoteRepo, hub, logger)
	upvoteService := upvotes.NewService(upvoteRepo, logger)

	var notificationStore notifications.Store
	if cfg.RedisURL != "" {
		redisStore, err := notifications.NewRedisStore(cfg.RedisURL, cfg.NotificationTTL)
		if err != nil {
			return err
		}
		defer redisStore.Close()
		notificationStore = redisStore
		logger.Info("notifications backed by redis")
	} else {
		notificationStore = notifications.NewMemoryStore(0)
		logger.Info("notifications kept in memory")
	}

	manager := dashboard.NewManager(
		issueService,
		upvoteService,
		middleware.ContextAuthProvider{},
		notificationStore,
		dashboard.Config{RemoteTimeout: cfg.RemoteTimeout, SessionIdleTTL: cfg.SessionIdleTTL},
		logger,
	)
	manager.StartSweeper(ctx, time.Minute)
	unsubscribe := issueService.OnChange(manager.HandleChange)
	defer unsubscribe()

	// Realtime sources
	listener := postgresRepo.NewChangeListener(cfg.DatabaseURL, hub, logger)
	go func() {
		if err := listener.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("change listener stopped", "error", err)
		}
	}()
	if cfg.RealtimeURL != "" {
		connector := realtime.NewConnector(hub, cfg.RealtimeURL, logger).WithAccessToken(cfg.RealtimeAccessToken)
		go func() {
			if err := connector.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("realtime connector stopped", "error", err)
			}
		}()
	}

	cookies, err := citizen.NewSessionCookies([]byte(cfg.CookieSecret), cfg.CookieSecure)
	if err != nil {
		return err
	}
	authMiddleware := middleware.NewJWTAuthMiddleware([]byte(cfg.JWTSecret), cfg.JWTIssuer, logger)
	rateLimiter := middleware.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow)
	defer rateLimiter.Stop()

	r := chi.NewRouter()

	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.RequestID)

	routes.RegisterCitizenRoutes(r, routes.CitizenHandlers{
		Dashboard:     citizen.NewDashboardHandler(manager, cookies, logger),
		Issues:        citizen.NewIssuesHandler(issueService, logger),
		Notifications: citizen.NewNotificationsHandler(notificationStore, cookies, logger),
	}, authMiddleware, rateLimiter)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("civic issue dashboard starting", "addr", cfg.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
