// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer — it connects handlers, middleware, and routes.
// Think of it as the control centre that decides:
// - Which URL patterns map to which handler functions
// - What middleware runs on which routes
// - How the server starts and stops gracefully
//
// WHY SEPARATE FROM main.go?
// Keeping server setup in its own package makes it:
// - Testable (we can create a test server without running main)
// - Reusable (multiple entry points could use the same server config)
// - Clean (main.go stays minimal — just "start the server")
//
// DEPENDENCY INJECTION FLOW:
// main.go creates:
//   Config (env vars) → passed to Server
//   Server.New() creates: sqlite.DB → TokenService/PasswordService
//                       → AuthService/BookService → handlers
//
// This is the "composition root" pattern — all dependencies are wired
// in one place (New/setupRoutes), rather than scattered across the codebase.
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

	"booktracker/internal/auth"
	"booktracker/internal/handler"
	"booktracker/internal/middleware"
	sqliteRepo "booktracker/internal/repository/sqlite"
	"booktracker/internal/search"
	"booktracker/internal/service"
)

// Config holds server configuration.
// Using a struct for config (instead of individual parameters) makes it easy to:
// - Add new config options without changing function signatures
// - Pass config around as a single value
// - Load config from files/env vars in one place
type Config struct {
	Port        int
	DBPath      string // path to the SQLite database file
	JWTSecret   string // HMAC secret for signing access and reset tokens
	UploadDir   string // where avatar images are stored
	BooksAPIURL string // Google Books endpoint; empty means the real one
}

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns a database connection (db). When the server shuts down,
// we must close this connection to flush any pending writes and release the
// file lock. This is handled in Start() during graceful shutdown.
type Server struct {
	router *chi.Mux
	config Config
	logger *slog.Logger
	db     *sqliteRepo.DB // database connection (owned by server, closed on shutdown)
}

// New creates a new Server with the given config.
//
// DEPENDENCY INJECTION & WIRING:
// This is where the entire dependency chain is assembled:
//  1. Create the database connection (sqlite.New)
//  2. Create the auth utilities (TokenService, PasswordService)
//  3. Create the service layer (AuthService, BookService) with the DB
//  4. Create the handlers with the services
//  5. Wire handlers to routes
//
// Each layer only receives what it needs:
// - Services get repository interfaces (not the concrete sqlite.DB)
// - Handlers get services (not the repositories or DB)
//
// IMPORT ALIAS:
// We import repository/sqlite as `sqliteRepo` to avoid confusion with
// the sqlite driver package. Import aliases are common in Go when
// package names would otherwise collide or be unclear.
func New(cfg Config, logger *slog.Logger) (*Server, error) {
	// === CREATE DATABASE ===
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

	// Set up middleware and routes
	if err := s.setupRoutes(); err != nil {
		db.Close() // Clean up DB if route setup fails
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// Handler exposes the router so tests can mount the full API on an
// httptest.Server without opening a real port.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the server's resources without serving. Start() does this
// itself; Close exists for tests that use Handler() directly.
func (s *Server) Close() error {
	return s.db.Close()
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// POST   /api/auth/register                    → create account, sign in
// POST   /api/auth/login                       → sign in
// POST   /api/auth/forgot-password             → start password reset
// POST   /api/auth/reset-password/{token}      → finish password reset
// POST   /api/auth/avatar               (auth) → upload profile image
// GET    /api/me                        (auth) → current user profile
// GET    /api/books                     (auth) → list collection
// POST   /api/books                     (auth) → add book
// GET    /api/books/stats               (auth) → collection statistics
// PUT    /api/books/{id}                (auth) → update status
// DELETE /api/books/{id}                (auth) → remove book
// PUT    /api/books/{id}/rating         (auth) → set rating
// PUT    /api/books/{id}/for-sale       (auth) → toggle for-sale flag
// POST   /api/books/{id}/comments       (auth) → add comment
// PUT    /api/books/{id}/comments/{commentId}    (auth) → edit comment
// DELETE /api/books/{id}/comments/{commentId}    (auth) → remove comment
// GET    /api/search?q=                 (auth) → Google Books proxy
// GET    /uploads/*                            → avatar images
//
// MIDDLEWARE ORDER MATTERS:
// Middleware executes in the order it's added. Our order:
// 1. RequestID — assigns unique ID to each request (for tracing)
// 2. RealIP — extracts real client IP from proxy headers
// 3. Logger — logs each request with timing info
// 4. Recoverer — catches panics and returns 500 instead of crashing
func (s *Server) setupRoutes() error {
	// === Global Middleware ===
	// These run on EVERY request, in order

	// Chi's built-in middleware
	s.router.Use(chimiddleware.RequestID) // Adds X-Request-ID header
	s.router.Use(chimiddleware.RealIP)    // Extracts real IP from X-Forwarded-For
	s.router.Use(chimiddleware.Recoverer) // Recovers from panics, returns 500

	// Our custom logging middleware
	s.router.Use(middleware.Logger(s.logger))

	// === Auth Utilities ===
	tokens, err := auth.NewTokenService(s.config.JWTSecret)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	passwords := auth.NewPasswordService()

	// === Services ===
	// DEPENDENCY CHAIN:
	//   s.db (sqlite.DB) → implements repository.UserRepository and
	//   repository.BookRepository. The services receive the interfaces,
	//   the handlers receive the services.
	//
	// Notice: the handlers never touch the database directly.
	// The services never touch HTTP. Clean separation!
	authService := service.NewAuthService(s.db.Users(), tokens, passwords, &service.LogMailer{Logger: s.logger}, s.logger)
	bookService := service.NewBookService(s.db.Books(), s.logger)

	// === Handlers ===
	authHandler := handler.NewAuthHandler(authService, s.config.UploadDir, s.logger)
	bookHandler := handler.NewBookHandler(bookService, authService, s.logger)
	searchHandler := handler.NewSearchHandler(search.NewClient(s.config.BooksAPIURL), s.logger)

	// === Avatar Images ===
	// http.FileServer serves files from the filesystem.
	// http.StripPrefix removes "/uploads/" from the URL path before looking up the file.
	// So GET /uploads/abc123.png → serves {UploadDir}/abc123.png
	fileServer := http.FileServer(http.Dir(s.config.UploadDir))
	s.router.Handle("/uploads/*", http.StripPrefix("/uploads/", fileServer))

	// === API Routes ===
	s.router.Route("/api", func(r chi.Router) {
		// Public: anyone can register, log in, or recover a password.
		r.Post("/auth/register", authHandler.HandleRegister)
		r.Post("/auth/login", authHandler.HandleLogin)
		r.Post("/auth/forgot-password", authHandler.HandleForgotPassword)
		r.Post("/auth/reset-password/{token}", authHandler.HandleResetPassword)

		// Protected: everything below requires a valid bearer token.
		// r.Group creates a sub-router that inherits the parent middleware
		// and adds RequireAuth on top — public routes above stay untouched.
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))

			r.Get("/me", authHandler.HandleMe)
			r.Post("/auth/avatar", authHandler.HandleAvatarUpload)

			r.Get("/books", bookHandler.HandleList)
			r.Post("/books", bookHandler.HandleCreate)
			// /books/stats must be registered before /books/{id} would
			// shadow it — chi routes static segments ahead of params, but
			// keeping stats first makes the intent obvious.
			r.Get("/books/stats", bookHandler.HandleStats)
			r.Put("/books/{id}", bookHandler.HandleUpdate)
			r.Delete("/books/{id}", bookHandler.HandleDelete)
			r.Put("/books/{id}/rating", bookHandler.HandleUpdateRating)
			r.Put("/books/{id}/for-sale", bookHandler.HandleToggleForSale)
			r.Post("/books/{id}/comments", bookHandler.HandleAddComment)
			r.Put("/books/{id}/comments/{commentId}", bookHandler.HandleUpdateComment)
			r.Delete("/books/{id}/comments/{commentId}", bookHandler.HandleDeleteComment)

			r.Get("/search", searchHandler.HandleSearch)
		})
	})

	return nil
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
// 1. Stop accepting new HTTP connections
// 2. Wait for in-flight requests to finish (30s timeout)
// 3. Close the database connection (flushes WAL, releases file lock)
//
// If we skip step 3, the database file might be left in an inconsistent state.
// The `defer s.db.Close()` ensures this happens even if something panics.
func (s *Server) Start() error {
	// Ensure the database is closed when the server stops.
	// This runs AFTER everything else in this function finishes.
	defer s.db.Close()

	// Create the HTTP server with sensible timeouts
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Channel to receive OS signals
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Channel to receive server errors
	serverErrors := make(chan error, 1)

	// Start the server in a goroutine (so it doesn't block)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("database", s.config.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	// Block until we receive a signal or server error
	select {
	case err := <-serverErrors:
		// Server failed to start
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		// Received shutdown signal
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		// Give in-flight requests 30 seconds to complete
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
