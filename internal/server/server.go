// Package server sets up the HTTP server, router, and all route definitions.
//
// This package is the "wiring" layer — the composition root where the
// entire dependency chain is assembled:
//
//	sqlite.DB → OTP store / mail sender / token service
//	          → AuthService, NoteService
//	          → AuthHandler, NoteHandler
//	          → routes
//
// Each layer only receives what it needs: services get repository
// interfaces (not the concrete *sqlite.DB), handlers get services, and the
// router gets handlers. Keeping the wiring out of main.go makes the server
// constructible in tests.
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

	"github.com/sakif/hd-notes/internal/auth"
	"github.com/sakif/hd-notes/internal/config"
	"github.com/sakif/hd-notes/internal/handler"
	"github.com/sakif/hd-notes/internal/mail"
	"github.com/sakif/hd-notes/internal/middleware"
	"github.com/sakif/hd-notes/internal/otp"
	sqliteRepo "github.com/sakif/hd-notes/internal/repository/sqlite"
	"github.com/sakif/hd-notes/internal/service"
)

// Server represents the HTTP server and all its dependencies.
//
// The Server owns the database connection; it is closed during graceful
// shutdown to flush pending writes and release the file lock.
type Server struct {
	router *chi.Mux
	config *config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// New creates a new Server with the given config.
//
// IMPORT ALIAS:
// repository/sqlite is imported as `sqliteRepo` to avoid confusion with the
// sqlite driver package.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setupRoutes(); err != nil {
		db.Close() // Clean up DB if route setup fails
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
//
//	GET    /                      → liveness message
//	POST   /api/auth/send-otp     → issue + email an OTP
//	POST   /api/auth/verify-otp   → verify code, signup/login, issue JWT
//	GET    /api/me                → current user           [auth]
//	POST   /api/notes/create      → create note            [auth]
//	GET    /api/notes/{userId}    → list notes, newest-first [auth]
//	PUT    /api/notes/{noteId}    → replace note fields    [auth]
//	DELETE /api/notes/{noteId}    → delete note            [auth]
//
// MIDDLEWARE ORDER MATTERS — middleware executes in the order it's added:
// RequestID → RealIP → Recoverer → request logging → CORS.
func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID) // Adds X-Request-ID header
	s.router.Use(chimiddleware.RealIP)    // Extracts real IP from X-Forwarded-For
	s.router.Use(chimiddleware.Recoverer) // Recovers from panics, returns 500

	s.router.Use(middleware.Logger(s.logger))

	if origins := s.config.GetCORSAllowedOrigins(); len(origins) > 0 {
		s.router.Use(middleware.CORS(middleware.DefaultCORSConfig(origins)))
	}

	// === Dependencies ===
	tokens, err := auth.NewTokenService(s.config.JWTSecret, s.config.TokenTTL)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}

	var sender mail.Sender
	if s.config.MailEnabled() {
		sender = mail.NewSMTPSender(mail.SMTPConfig{
			Host:     s.config.SMTPHost,
			Port:     s.config.SMTPPort,
			Username: s.config.SMTPUsername,
			Password: s.config.SMTPPassword,
			From:     s.config.MailFrom,
		}, s.logger)
	} else {
		s.logger.Warn("SMTP not configured — OTP codes will be logged, not emailed")
		sender = mail.NewLogSender(s.logger)
	}

	otpStore := otp.NewStore(s.config.OTPTTL)

	authService := service.NewAuthService(s.db.Users(), otpStore, sender, tokens, s.logger)
	noteService := service.NewNoteService(s.db.Notes(), s.logger)

	authHandler := handler.NewAuthHandler(authService, s.logger)
	noteHandler := handler.NewNoteHandler(noteService, s.logger)

	// === Routes ===
	s.router.Get("/", handler.HandleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/auth/send-otp", authHandler.HandleSendOTP)
		r.Post("/auth/verify-otp", authHandler.HandleVerifyOTP)

		// Everything below requires a valid session token.
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))

			r.Get("/me", authHandler.HandleMe)

			r.Post("/notes/create", noteHandler.HandleCreate)
			r.Get("/notes/{userId}", noteHandler.HandleList)
			r.Put("/notes/{noteId}", noteHandler.HandleUpdate)
			r.Delete("/notes/{noteId}", noteHandler.HandleDelete)
		})
	})

	return nil
}

// Handler returns the configured router. Used by httptest-based tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server and handles graceful shutdown.
//
// On SIGINT/SIGTERM:
//  1. Stop accepting new HTTP connections
//  2. Wait for in-flight requests to finish (ShutdownTimeout)
//  3. Close the database connection (flushes WAL, releases file lock)
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("database", s.config.DBPath),
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

		ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
