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

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mhartsell/gatehouse/internal/auth"
	"github.com/mhartsell/gatehouse/internal/background"
	"github.com/mhartsell/gatehouse/internal/config"
	"github.com/mhartsell/gatehouse/internal/database"
	"github.com/mhartsell/gatehouse/internal/handlers"
	"github.com/mhartsell/gatehouse/internal/metrics"
	gatemiddleware "github.com/mhartsell/gatehouse/internal/middleware"
	"github.com/mhartsell/gatehouse/internal/models"
	"github.com/mhartsell/gatehouse/internal/ratelimit"
	"github.com/mhartsell/gatehouse/internal/repositories"
	"github.com/mhartsell/gatehouse/internal/routes"
	"github.com/mhartsell/gatehouse/internal/services"
	pkgauth "github.com/mhartsell/gatehouse/pkg/auth"
	pkghttp "github.com/mhartsell/gatehouse/pkg/http"
	pkglogger "github.com/mhartsell/gatehouse/pkg/logger"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	if err := database.Migrate(cfg.Database.DSN()); err != nil {
		logger.Error("failed to run migrations", slog.Any("error", err))
		os.Exit(1)
	}

	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Repositories.
	optionsRepo := repositories.NewOptionsRepository(db)
	transientRepo := repositories.NewTransientRepository(db)
	syncQueueRepo := repositories.NewSyncQueueRepository(db)
	userRepo := repositories.NewUserRepository(db)
	secLogRepo := repositories.NewSecurityLogRepository(db)
	noticeRepo := repositories.NewNoticeRepository(db)

	auditLogger := pkglogger.NewAuditLogger(logger)
	promMetrics := metrics.New(prometheus.DefaultRegisterer)

	// Alerting: SES when configured, structured log otherwise.
	var alerts services.AlertSender
	if cfg.Email.Enabled {
		sesAlerts, err := services.NewAWSSESAlertService(cfg.Email.AWSRegion, cfg.Email.FromAddress, cfg.Email.AlertRecipient, logger)
		if err != nil {
			logger.Error("failed to initialize alert service", slog.Any("error", err))
			os.Exit(1)
		}
		alerts = sesAlerts
	} else {
		alerts = services.NewLogOnlyAlertService(logger)
	}

	// Login gate plumbing.
	counters := ratelimit.NewStore(transientRepo)
	formTokens := auth.NewFormTokenManager(cfg.Gate.FormTokenTTL)
	honeypot := auth.NewHoneypot(cfg.Gate.MinHumanDelay)
	sessionManager := auth.NewSessionManager(cfg.Auth.SessionSecret, cfg.Auth.RememberDuration)
	attemptDelay := auth.NewAttemptDelay(cfg.Gate.AttemptDelay)

	gate := services.NewGate(logger, promMetrics,
		services.NewFormTokenValidator(formTokens),
		services.NewHoneypotValidator(honeypot, logger),
		services.NewThrottleValidator(cfg.Gate.LoginLimit, cfg.Gate.LoginWindow, logger),
		services.NewLockoutValidator(cfg.Auth.UsernameSalt, logger),
	)
	tracker := services.NewAttemptTracker(
		transientRepo, secLogRepo, alerts, promMetrics, logger, auditLogger,
		cfg.Auth.UsernameSalt, cfg.Gate.LoginWindow, cfg.Gate.AlertWindow,
	)

	// Login path routing, compiled from the stored options.
	bootCtx, bootCancel := context.WithTimeout(context.Background(), 10*time.Second)
	secOpts, err := optionsRepo.GetSecurityOptions(bootCtx)
	if err != nil {
		logger.Error("failed to load security options", slog.Any("error", err))
		os.Exit(1)
	}
	matcher := services.NewLoginPathMatcher(secOpts)

	planner := services.NewLoginPathPlanner(optionsRepo, matcher, logger)
	notices := noticeRepo

	var conflictSvc *services.ConflictService
	syncSvc := services.NewSyncService(syncQueueRepo, invalidatorFunc(func(ctx context.Context) error {
		return conflictSvc.Invalidate(ctx)
	}), planner, promMetrics, logger)
	settingsSvc := services.NewSettingsService(optionsRepo, syncSvc, notices, logger, auditLogger)

	registry := services.NewOptionBackedRegistry(optionsRepo)
	conflictSvc = services.NewConflictService(registry, transientRepo, settingsSvc, noticeRepo, secLogRepo, gate, promMetrics, logger)

	var companion services.CompanionProbe = services.StaticCompanionProbe(false)
	if cfg.Server.CompanionURL != "" {
		companion = services.NewHTTPCompanionProbe(cfg.Server.CompanionURL, logger)
	}
	redirectSvc := services.NewRedirectService(settingsSvc, companion, notices, logger, auditLogger)

	authSvc := services.NewAuthService(
		userRepo, optionsRepo, counters, gate, tracker,
		sessionManager, redirectSvc, attemptDelay,
		promMetrics, logger, cfg.Auth.UsernameSalt,
	)

	if err := ensureAdminUser(bootCtx, userRepo, logger); err != nil {
		logger.Error("failed to ensure admin user", slog.Any("error", err))
	}
	bootCancel()

	// Handlers.
	ipConfig := &pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}
	secureCookies := cfg.Server.Env == "production"
	authHandler := handlers.NewAuthHandler(authSvc, formTokens, matcher, ipConfig, secureCookies)
	dashboardHandler := handlers.NewDashboardHandler(redirectSvc, userRepo)
	settingsHandler := handlers.NewSettingsHandler(settingsSvc)
	conflictHandler := handlers.NewConflictHandler(conflictSvc, noticeRepo, secLogRepo)

	// Router.
	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(gatemiddleware.SecurityHeaders(optionsRepo))
	router.Use(gatemiddleware.SecureLogger(logger, ipConfig))
	router.Use(chimiddleware.Recoverer)
	router.Use(chimiddleware.Timeout(60 * time.Second))
	// Session must resolve claims before ForceLogin decides whether the
	// request is authenticated.
	router.Use(gatemiddleware.Session(sessionManager))
	router.Use(gatemiddleware.ForceLogin(optionsRepo, matcher))

	routes.RegisterRoutes(router, routes.Deps{
		AuthHandler:      authHandler,
		DashboardHandler: dashboardHandler,
		SettingsHandler:  settingsHandler,
		ConflictHandler:  conflictHandler,
		SyncService:      syncSvc,
		Matcher:          matcher,
	})

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		w.Header().Set("Content-Type", "application/json")
		if err := db.HealthCheck(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy","database":"down"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","database":"up"}`))
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	pruner := background.NewPruner(transientRepo, syncSvc, logger, cfg.Gate.PruneInterval, cfg.Gate.SyncEventMaxAge)
	prunerCtx, prunerCancel := context.WithCancel(context.Background())
	defer prunerCancel()
	go pruner.Start(prunerCtx)

	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	prunerCancel()
	pruner.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

// invalidatorFunc adapts a closure to services.CacheInvalidator,
// breaking the construction cycle between the sync and conflict
// services.
type invalidatorFunc func(ctx context.Context) error

func (f invalidatorFunc) Invalidate(ctx context.Context) error { return f(ctx) }

// ensureAdminUser creates the first administrator when ADMIN_USERNAME
// and ADMIN_PASSWORD are set and the account does not exist yet.
func ensureAdminUser(ctx context.Context, userRepo *repositories.UserRepository, logger *slog.Logger) error {
	username := os.Getenv("ADMIN_USERNAME")
	password := os.Getenv("ADMIN_PASSWORD")
	if username == "" || password == "" {
		logger.Info("no ADMIN_USERNAME or ADMIN_PASSWORD set, skipping admin bootstrap")
		return nil
	}

	if _, err := userRepo.GetByUsername(ctx, username); err == nil {
		logger.Info("admin user already exists")
		return nil
	} else if !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("failed to check for admin user: %w", err)
	}

	if err := pkgauth.ValidatePassword(password); err != nil {
		return fmt.Errorf("ADMIN_PASSWORD rejected: %w", err)
	}
	hash, err := pkgauth.HashPassword(password)
	if err != nil {
		return err
	}

	_, err = userRepo.Create(ctx, &models.User{
		Username:     username,
		PasswordHash: hash,
		Roles:        []string{"administrator"},
	})
	if err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}
	logger.Info("admin user created", slog.String("username", pkglogger.TruncateUsername(username)))
	return nil
}
