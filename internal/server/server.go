// Package server wires handlers, middleware, and routes, and owns the HTTP
// server lifecycle. This is the composition root: every dependency is
// constructed and connected in New, and each layer receives only what it
// needs.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/dsampson94/community-recruit/internal/auth"
	"github.com/dsampson94/community-recruit/internal/config"
	"github.com/dsampson94/community-recruit/internal/handler"
	"github.com/dsampson94/community-recruit/internal/middleware"
	"github.com/dsampson94/community-recruit/internal/notify"
	sqliteRepo "github.com/dsampson94/community-recruit/internal/repository/sqlite"
	"github.com/dsampson94/community-recruit/internal/service"
)

// Server holds the router and the resources it owns. The database is closed
// during graceful shutdown.
type Server struct {
	router *chi.Mux
	cfg    *config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// New creates a Server, assembling the full dependency chain:
// DB → repositories → services → handlers → routes.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		cfg:    cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setupRoutes(); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	// Collaborators.
	var notifier notify.Notifier = notify.Noop{}
	if s.cfg.MailgunDomain != "" {
		notifier = notify.NewMailgun(notify.MailgunConfig{
			Domain: s.cfg.MailgunDomain,
			APIKey: s.cfg.MailgunAPIKey,
			From:   s.cfg.MailgunFrom,
		}, s.logger)
	}

	// Services. The leaderboard is constructed first so the user service
	// can invalidate it after writes.
	boardSvc := service.NewLeaderboardService(s.db, s.cfg.Weights(), s.logger)
	passwords := auth.NewPasswordService()
	userSvc := service.NewUserService(s.db, passwords, notifier, boardSvc, s.logger)
	entitySvc := service.NewEntityService(s.db, s.logger)

	userHandler := handler.NewUserHandler(userSvc, s.logger)
	entityHandler := handler.NewEntityHandler(entitySvc, s.logger)
	boardHandler := handler.NewLeaderboardHandler(boardSvc, s.logger)

	// Identity collaborator: without a JWT secret the API runs read-only
	// plus registration, with no authenticated routes.
	var tokens *auth.TokenService
	if s.cfg.JWTSecret != "" {
		var err error
		tokens, err = auth.NewTokenService(s.cfg.JWTSecret)
		if err != nil {
			return fmt.Errorf("creating token service: %w", err)
		}
	} else {
		s.logger.Warn("JWT_SECRET not set — authenticated routes disabled")
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/leaderboard", boardHandler.HandleGet)

		r.Post("/users", userHandler.HandleCreate)
		r.Get("/users", userHandler.HandleList)
		r.Get("/users/{id}", userHandler.HandleGet)

		r.Get("/{kind}", entityHandler.HandleList)
		r.Post("/{kind}", entityHandler.HandleCreate)
		r.Get("/{kind}/{id}", entityHandler.HandleGet)
		r.Delete("/{kind}/{id}", entityHandler.HandleDelete)

		if tokens != nil {
			r.Group(func(r chi.Router) {
				r.Use(auth.RequireAuth(tokens))
				r.Patch("/users/{id}", userHandler.HandleUpdate)
				r.Delete("/users/{id}", userHandler.HandleDelete)
				r.Post("/users/{id}/{kind}", userHandler.HandleAddReference)
				r.Delete("/users/{id}/{kind}/{entityID}", userHandler.HandleRemoveReference)
			})
		}
	})

	if tokens != nil {
		authSvc := service.NewAuthService(s.db, userSvc, tokens, passwords, s.logger)

		var github *auth.GitHubProvider
		if s.cfg.GitHubClientID != "" && s.cfg.GitHubClientSecret != "" {
			callbackURL := s.cfg.GitHubCallbackURL
			if callbackURL == "" {
				callbackURL = fmt.Sprintf("http://localhost:%d/auth/github/callback", s.cfg.Port)
			}
			github = auth.NewGitHubProvider(s.cfg.GitHubClientID, s.cfg.GitHubClientSecret, callbackURL)
		}

		authHandler := handler.NewAuthHandler(authSvc, github, s.logger)
		s.router.Post("/auth/login", authHandler.HandleLogin)
		s.router.Post("/auth/logout", authHandler.HandleLogout)
		s.router.With(auth.RequireAuth(tokens)).Get("/api/me", authHandler.HandleMe)

		if github != nil {
			s.router.Get("/auth/github/login", authHandler.HandleGitHubLogin)
			s.router.Get("/auth/github/callback", authHandler.HandleGitHubCallback)
		}
	}

	return nil
}

// Start runs the HTTP server until SIGINT/SIGTERM, then shuts down
// gracefully: stop accepting connections, drain in-flight requests, close
// the database.
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.cfg.Port),
			slog.String("database", s.cfg.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
