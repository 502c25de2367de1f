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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	api "github.com/mind-engage/hireflow/internal/api/http"
	"github.com/mind-engage/hireflow/internal/application"
	auth "github.com/mind-engage/hireflow/internal/auth/middleware"
	"github.com/mind-engage/hireflow/internal/backend"
	"github.com/mind-engage/hireflow/internal/config"
	"github.com/mind-engage/hireflow/internal/db"
	"github.com/mind-engage/hireflow/internal/exam"
	"github.com/mind-engage/hireflow/internal/logging"
	"github.com/mind-engage/hireflow/internal/rbac"
	"github.com/mind-engage/hireflow/internal/session"
	storage "github.com/mind-engage/hireflow/internal/storage"
	syncx "github.com/mind-engage/hireflow/internal/sync"
)

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- DB ---
	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	dbh, err := db.Open(openCtx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	cancel()
	if err != nil {
		return fmt.Errorf("db open: %w", err)
	}
	defer dbh.Close()

	site, _ := os.Hostname()
	events := syncx.NewEventRepo(dbh, site)
	results := syncx.NewResultRepo(dbh)
	apps := syncx.NewApplicationRepo(dbh)

	bs, err := storage.NewFSStore(cfg.BlobBasePath)
	if err != nil {
		return fmt.Errorf("blob store: %w", err)
	}

	// --- Collaborators ---
	primary := backend.New(backend.Config{
		BaseURL:      cfg.PrimaryAPIURL,
		TokenURL:     cfg.PrimaryTokenURL,
		ClientID:     cfg.PrimaryClientID,
		ClientSecret: cfg.PrimaryClientSecret,
		Timeout:      cfg.HTTPClientTimeout,
		Logger:       log,
	})
	gen, err := fallbackGenerator(ctx, cfg)
	if err != nil {
		return err
	}
	source := exam.ChainSource{
		Primary: primary,
		Fallback: backend.FallbackSource{
			Gen:      gen,
			Offers:   primary,
			Profiles: apps,
			Log:      log,
		},
		Log: log,
	}

	flow := session.FlowFromConfig(cfg.Flow, cfg.ScoreRetryAttempts, cfg.ScoreRetryDelay)
	sessions := session.NewManager(flow, session.Deps{
		Source:   source,
		Scores:   primary,
		Recorder: events,
		Results:  results,
		Log:      log,
	})

	authSvc := auth.NewAuthService(cfg.AuthHMACSecret)
	apply := &application.Service{
		Backend: primary,
		Blobs:   bs,
		Repo:    apps,
		Tokens:  authSvc,
		Log:     log,
	}
	sessionAPI := &api.SessionAPI{Manager: sessions, Log: log, Origins: cfg.CORSOrigins()}
	adminAPI := &api.AdminAPI{
		Results:      results,
		Events:       events,
		Applications: apps,
		Sessions:     sessions,
		Blobs:        bs,
		Log:          log,
	}

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, logging.RequestLogger(log), middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", api.HealthzHandler())
	r.Get("/readyz", api.ReadyzHandler(dbh))

	r.Post("/auth/login", auth.LoginHandler(authSvc,
		auth.Account{User: cfg.AdminUser, PassHash: cfg.AdminPassHash, Role: rbac.RoleAdmin},
		auth.Account{User: cfg.RecruiterUser, PassHash: cfg.RecruiterPassHash, Role: rbac.RoleRecruiter},
	))

	// public: offer page and application form
	r.Group(func(pr chi.Router) {
		pr.Use(middleware.Timeout(30 * time.Second))
		pr.Get("/api/offers/{id}", api.OfferDetailHandler(primary, log))
		pr.Post("/api/apply", api.ApplyHandler(apply))
	})

	// Protected API (JWT → role in context → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))

		pr.With(api.BootstrapGuard()).
			Get("/test-personnalite/{candidatID}/{offreID}", sessionAPI.BootstrapHandler())
		pr.Route("/api/sessions", sessionAPI.Mount)
		pr.Route("/api/admin", adminAPI.Mount)
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("listening",
			zap.String("addr", cfg.HTTPAddr),
			zap.String("mode", string(cfg.Mode)),
			zap.String("db", cfg.DBDriver),
			zap.String("public_url", cfg.PublicURL),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := sessions.Shutdown(shutdownCtx); err != nil {
		log.Warn("session shutdown", zap.Error(err))
	}
	return srv.Shutdown(shutdownCtx)
}

func fallbackGenerator(ctx context.Context, cfg config.Config) (backend.Generator, error) {
	switch cfg.FallbackDriver {
	case "gemini":
		g, err := backend.NewGeminiGenerator(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, fmt.Errorf("gemini: %w", err)
		}
		return g, nil
	default:
		return backend.NewHTTPGenerator(cfg.FallbackAPIURL, cfg.HTTPClientTimeout), nil
	}
}
