package server

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"folios/internal/config"
	"folios/internal/database"
	"folios/internal/feed"
	"folios/internal/middlewares"
	"folios/internal/repositories"
	"folios/internal/services"
)

type Server struct {
	cfg         *config.Config
	httpServer  *http.Server
	db          database.Service
	redisClient *redis.Client
	broker      feed.Broker

	auth            services.Authenticator
	userService     services.UserService
	bookmarkService services.BookmarkService
	authService     services.AuthService

	limiter        *middlewares.RateLimiter
	metrics        *middlewares.PrometheusMiddleware
	stopBackground context.CancelFunc
}

// NewServer connects to MongoDB and, when configured, Redis, then wires
// the services and routes.
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	db, err := database.New(ctx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		return nil, err
	}
	if err := db.EnsureIndexes(ctx); err != nil {
		_ = db.Close(ctx)
		return nil, err
	}

	var (
		broker      feed.Broker
		redisClient *redis.Client
	)
	if cfg.RedisAddr != "" {
		redisClient, err = feed.Connect(ctx, feed.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			_ = db.Close(ctx)
			return nil, err
		}
		broker, err = feed.NewRedisBroker(ctx, redisClient)
		if err != nil {
			_ = redisClient.Close()
			_ = db.Close(ctx)
			return nil, err
		}
		log.Info().Str("addr", cfg.RedisAddr).Msg("Change feed relayed through Redis")
	} else {
		broker = feed.NewBroadcaster()
		log.Info().Msg("Change feed running in-process")
	}

	s := newServer(cfg, db, broker, prometheus.DefaultRegisterer)
	s.redisClient = redisClient
	services.InitializeGoth(cfg)
	return s, nil
}

func newServer(cfg *config.Config, db database.Service, broker feed.Broker, reg prometheus.Registerer) *Server {
	userRepo := repositories.NewUserRepository(db)
	bookmarkRepo := repositories.NewBookmarkRepository(db)

	s := &Server{
		cfg:             cfg,
		db:              db,
		broker:          broker,
		auth:            services.NewJWTAuthenticator(cfg.JWTSecret),
		userService:     services.NewUserService(userRepo),
		bookmarkService: services.NewBookmarkService(bookmarkRepo, broker),
		authService:     services.NewAuthService(userRepo, cfg),
		limiter:         middlewares.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
		metrics:         middlewares.NewPrometheusMiddleware(reg),
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	// Change feed streams only end when their subscription closes.
	s.httpServer.RegisterOnShutdown(func() {
		if err := s.broker.Close(); err != nil {
			log.Warn().Err(err).Msg("Error closing change feed broker")
		}
	})

	return s
}

func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.stopBackground = cancel
	go s.limiter.CleanupVisitors(ctx)

	log.Info().Int("port", s.cfg.Port).Msg("Starting server")
	return s.httpServer.ListenAndServe()
}

func (s *Server) GracefulShutdown(done chan bool) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	log.Info().Msg("Shutting down gracefully, press Ctrl+C again to force")
	stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown with error")
	}
	s.close(ctx)

	log.Info().Msg("Server exiting")
	done <- true
}

func (s *Server) close(ctx context.Context) {
	if s.stopBackground != nil {
		s.stopBackground()
	}
	if err := s.broker.Close(); err != nil {
		log.Warn().Err(err).Msg("Error closing change feed broker")
	}
	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			log.Warn().Err(err).Msg("Error closing Redis client")
		}
	}
	if err := s.db.Close(ctx); err != nil {
		log.Error().Err(err).Msg("Error disconnecting from MongoDB")
	}
}
