package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/planthub/authapi/config"
	"github.com/planthub/authapi/internal/auth"
	"github.com/planthub/authapi/internal/db"
	"github.com/planthub/authapi/internal/events"
	"github.com/planthub/authapi/internal/handlers"
	"github.com/planthub/authapi/internal/metrics"
	"github.com/planthub/authapi/internal/mq"
	"github.com/planthub/authapi/internal/services"
	"github.com/planthub/authapi/internal/store"
)

// Server wraps the HTTP server, router and the resources they own.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	broker     *mq.MQ
	events     *events.Publisher
	logger     *slog.Logger
}

// Components are the collaborators the router is built from.
type Components struct {
	Users   services.UserRepository
	Hasher  auth.PasswordHasher
	Events  *events.Publisher
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// New validates cfg, connects to the database and the events backend and
// builds the server. A configuration error is returned before any
// connection is made.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	broker, err := mq.Open(ctx, cfg.Events)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}
	var publisher *events.Publisher
	if broker != nil {
		publisher = events.NewPublisher(broker, cfg.Events.Channel, logger)
		logger.Info("publishing auth events", "backend", cfg.Events.Backend, "channel", cfg.Events.Channel)
	}

	router, err := NewRouter(cfg, Components{
		Users:   store.NewUserRepository(dbConn),
		Hasher:  auth.NewArgon2idHasher(),
		Events:  publisher,
		Metrics: metrics.New(),
		Logger:  logger,
	})
	if err != nil {
		_ = publisher.Close(ctx)
		_ = broker.Close()
		_ = dbConn.Close()
		return nil, err
	}

	port := cfg.ServerPort
	if port == 0 {
		port = config.DefaultServerPort
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		broker:     broker,
		events:     publisher,
		logger:     logger,
	}, nil
}

// NewRouter wires the auth pipeline and every route onto a chi router.
func NewRouter(cfg config.Config, c Components) (*chi.Mux, error) {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Hasher == nil {
		c.Hasher = auth.NewArgon2idHasher()
	}

	tokens, err := auth.NewTokenService(cfg.JWT.TokenConfig())
	if err != nil {
		return nil, err
	}
	cookies := auth.NewSessionCookiePolicy(cfg.Production(), cfg.CookieDomain, tokens.TTL(auth.AccessToken), tokens.TTL(auth.RefreshToken))

	authService := services.NewAuthService(c.Users, c.Hasher, tokens, c.Events, c.Logger)
	userService := services.NewUserService(c.Users, c.Hasher, c.Events)
	mw := handlers.NewMiddleware(authService, c.Metrics, c.Logger)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
		handlers.CORS(cfg.CORSOrigin),
		mw.Deserialize,
	)
	router.Get("/healthz", handlers.Healthz)
	if c.Metrics != nil {
		router.Method(http.MethodGet, "/metrics", c.Metrics.Handler())
	}
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, handlers.NewAuthHandler(authService, userService, cookies, c.Metrics, c.Logger), mw)
	})
	router.Route("/users", func(r chi.Router) {
		handlers.UserRouter(r, handlers.NewUserHandler(userService, c.Logger), mw)
	})

	return router, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server. It returns nil after Shutdown.
func (s *Server) Start() error {
	s.logger.Info("server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests, flushes queued events and releases
// the database and broker connections.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if cerr := s.events.Close(ctx); cerr != nil {
		s.logger.Warn("auth events not flushed before shutdown", "dropped", s.events.Dropped(), "error", cerr)
	}
	if s.broker != nil {
		if cerr := s.broker.Close(); cerr != nil {
			s.logger.Warn("closing events backend failed", "error", cerr)
		}
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return err
}
