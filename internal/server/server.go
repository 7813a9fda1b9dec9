package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/adminpanel/apiserver/config"
	"github.com/adminpanel/apiserver/internal/auth"
	"github.com/adminpanel/apiserver/internal/db"
	"github.com/adminpanel/apiserver/internal/handlers"
	"github.com/adminpanel/apiserver/internal/logging"
	"github.com/adminpanel/apiserver/internal/mq"
	"github.com/adminpanel/apiserver/internal/services"
	"github.com/adminpanel/apiserver/internal/store"
)

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	events     *mq.EventBus
	logger     logging.Logger
}

type repositories struct {
	users    services.UserRepository
	attempts services.LoginAttemptRepository
}

// New constructs a Server with basic middleware and defaults.
func New(ctx context.Context, cfg config.Config, logger logging.Logger) (*Server, error) {
	if logger == nil {
		logger = logging.Discard()
	}

	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	tokens, err := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return nil, err
	}

	s := &Server{logger: logger}

	repos, err := s.openRepositories(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	if err := s.openEvents(ctx, cfg.Events); err != nil {
		s.closeBackends()
		return nil, err
	}

	authOpts := []services.AuthOption{
		services.WithAdminEmailDomain(cfg.Auth.AdminEmailDomain),
		services.WithAuthLogger(logger.With("component", "auth")),
	}
	adminOpts := []services.AdminOption{
		services.WithAdminLogger(logger.With("component", "admin")),
	}
	if s.events != nil {
		authOpts = append(authOpts, services.WithAuthEvents(s.events))
		adminOpts = append(adminOpts, services.WithAdminEvents(s.events))
	}

	lockout := auth.NewLockoutPolicy(cfg.Auth.LockoutThreshold, cfg.Auth.LockoutWindow)
	logger.Info(ctx, "auth configured",
		"token_ttl", tokens.TTL(),
		"lockout_threshold", lockout.Threshold,
		"lockout_window", lockout.Window,
		"admin_email_domain", cfg.Auth.AdminEmailDomain,
	)
	authService := services.NewAuthService(repos.users, repos.attempts, tokens, lockout, authOpts...)
	adminService := services.NewAdminService(repos.users, adminOpts...)
	guard := services.NewSessionGuard(repos.users, tokens, logger.With("component", "session"))

	authMiddleware := handlers.RequireAuth(guard, logger)

	var pinger handlers.Pinger
	if s.db != nil {
		pinger = s.db
	}

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Get("/readyz", handlers.Readyz(pinger))
	router.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			handlers.AuthRouter(r, authService, adminService, authMiddleware, logger)
		})
		r.Route("/admin", func(r chi.Router) {
			handlers.AdminRouter(r, adminService, authMiddleware, logger)
		})
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	s.router = router
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

func (s *Server) openRepositories(ctx context.Context, cfg config.DatabaseConfig) (repositories, error) {
	switch cfg.Driver {
	case "memory":
		s.logger.Warn(ctx, "using in-memory store; accounts are lost on restart")
		return repositories{
			users:    store.NewMemoryUserRepository(),
			attempts: store.NewMemoryLoginAttemptRepository(),
		}, nil
	case "", "postgres":
		dbConn, err := db.Open(ctx, cfg)
		if err != nil {
			return repositories{}, err
		}
		s.db = dbConn
		return repositories{
			users:    store.NewUserRepository(dbConn),
			attempts: store.NewLoginAttemptRepository(dbConn),
		}, nil
	default:
		return repositories{}, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

func (s *Server) openEvents(ctx context.Context, cfg config.EventsConfig) error {
	backend, err := mq.Open(ctx, cfg)
	if errors.Is(err, mq.ErrDisabled) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open events backend: %w", err)
	}
	bus, err := mq.NewEventBus(backend, cfg.Channel, s.logger.With("component", "events"))
	if err != nil {
		_ = backend.Close()
		return err
	}
	s.events = bus
	s.logger.Info(ctx, "publishing account events", "backend", cfg.Backend, "channel", cfg.Channel)
	return nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info(context.Background(), "server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests, then releases the database and the
// events backend.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.closeBackends()
	return err
}

func (s *Server) closeBackends() {
	if s.events != nil {
		_ = s.events.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
}
