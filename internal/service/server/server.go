package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/vertextoedge/movie-catalog/internal/domain"
	domainservice "github.com/vertextoedge/movie-catalog/internal/domain/service"
)

// Config contains HTTP server configuration
type Config struct {
	BindAddr      string
	AdminUsername string
	AdminPassword string
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	IdleTimeout   time.Duration
}

// DefaultConfig returns default server configuration
func DefaultConfig() *Config {
	return &Config{
		BindAddr:     "0.0.0.0:8080",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// Catalog is the catalog surface exposed over HTTP
type Catalog interface {
	ListMovies(ctx context.Context, filter domain.MovieFilter) ([]*domain.Movie, error)
	GetMovie(ctx context.Context, id int64) (*domain.Movie, error)
	Trending(ctx context.Context) ([]*domain.Movie, error)
	TopRated(ctx context.Context) ([]*domain.Movie, error)
	TrendingByGenre(ctx context.Context, genre string, limit int) ([]*domain.Movie, error)
	ImportMovie(ctx context.Context, externalID string) (*domain.Movie, bool, error)
	SearchExternal(ctx context.Context, query string, page int) ([]*domain.Movie, error)
	TriggerSync(ctx context.Context, category string, pages domain.PageRange) (*domain.SyncRun, error)
	SyncRun(id string) (*domain.SyncRun, error)
	SyncRuns() []*domain.SyncRun
	Stats(ctx context.Context) (*domain.CatalogStats, error)
}

// Recommender is the scoring surface exposed over HTTP
type Recommender interface {
	Breakdown(ctx context.Context, userID, movieID int64) (*domainservice.ScoreBreakdown, error)
	Recommendations(ctx context.Context, userID int64, limit int) ([]domain.Recommendation, error)
	Similar(ctx context.Context, movieID int64, limit int) ([]*domain.Movie, error)
}

// Profiles is the profile surface exposed over HTTP
type Profiles interface {
	GetProfile(ctx context.Context, userID int64) (*domain.UserProfile, error)
	UpdateFavoriteGenres(ctx context.Context, userID int64, genres []string) (*domain.UserProfile, error)
	RateMovie(ctx context.Context, userID, movieID int64, score int, review string) (*domain.Rating, error)
	DeleteRating(ctx context.Context, userID, movieID int64) error
	ListRatings(ctx context.Context, userID int64) ([]*domain.Rating, error)
	DeleteUser(ctx context.Context, userID int64) error
	Statistics(ctx context.Context, userID int64) (*domain.UserStatistics, error)
}

// Pinger reports store connectivity
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services bundles the application services the server routes to
type Services struct {
	Catalog     Catalog
	Recommender Recommender
	Profiles    Profiles
	Store       Pinger
}

// Server represents the HTTP API server
type Server struct {
	config       *Config
	store        Pinger
	logger       *zap.Logger
	server       *http.Server
	router       chi.Router
	movieHandler *MovieHandler
	userHandler  *UserHandler
	adminHandler *AdminHandler
}

// New creates a new HTTP server
func New(cfg *Config, svc Services, logger *zap.Logger) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		config: cfg,
		store:  svc.Store,
		logger: logger,
	}

	s.movieHandler = NewMovieHandler(svc.Catalog, svc.Recommender, logger)
	s.userHandler = NewUserHandler(svc.Profiles, svc.Recommender, logger)
	s.adminHandler = NewAdminHandler(svc.Catalog, logger)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(LoggingMiddleware(logger))

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/stats", s.movieHandler.HandleStats)

		r.Route("/movies", func(r chi.Router) {
			r.Get("/", s.movieHandler.HandleList)
			r.Get("/trending", s.movieHandler.HandleTrending)
			r.Get("/trending/{genre}", s.movieHandler.HandleTrendingByGenre)
			r.Get("/top-rated", s.movieHandler.HandleTopRated)
			r.Get("/search", s.movieHandler.HandleSearch)
			r.Get("/{movieID}", s.movieHandler.HandleGet)
			r.Get("/{movieID}/similar", s.movieHandler.HandleSimilar)
		})

		r.Route("/users/{userID}", func(r chi.Router) {
			r.Delete("/", s.userHandler.HandleDeleteUser)
			r.Get("/profile", s.userHandler.HandleGetProfile)
			r.Put("/profile/genres", s.userHandler.HandleUpdateGenres)
			r.Get("/ratings", s.userHandler.HandleListRatings)
			r.Put("/ratings/{movieID}", s.userHandler.HandleRate)
			r.Delete("/ratings/{movieID}", s.userHandler.HandleDeleteRating)
			r.Get("/stats", s.userHandler.HandleStatistics)
			r.Get("/recommendations", s.userHandler.HandleRecommendations)
			r.Get("/movies/{movieID}/match", s.userHandler.HandleMatch)
		})

		r.Route("/admin", func(r chi.Router) {
			if cfg.AdminPassword != "" {
				r.Use(BasicAuthMiddleware(cfg.AdminUsername, cfg.AdminPassword, logger))
			}
			r.Post("/sync", s.adminHandler.HandleTriggerSync)
			r.Get("/sync/runs", s.adminHandler.HandleListRuns)
			r.Get("/sync/runs/{runID}", s.adminHandler.HandleGetRun)
			r.Post("/movies/import", s.adminHandler.HandleImport)
		})
	})

	s.router = r
	s.server = &http.Server{
		Addr:         cfg.BindAddr,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// Handler returns the server's root handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping HTTP server")
	return s.server.Shutdown(ctx)
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.store != nil {
		if err := s.store.Ping(r.Context()); err != nil {
			s.logger.Error("health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unhealthy",
				"error":  "database connection failed",
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}
