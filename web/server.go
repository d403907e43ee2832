package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"nomadmatch/auth"
	"nomadmatch/config"
	"nomadmatch/web/handlers"
	"nomadmatch/web/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Version is reported by the index route.
const Version = "1.0.0"

// Dependencies are the collaborators the HTTP layer is wired to.
type Dependencies struct {
	Recommender   handlers.Recommender
	Collection    handlers.CityCollection
	Lookups       handlers.LookupLog
	Accounts      handlers.Accounts
	Authenticator auth.Authenticator
	DB            handlers.Pinger
}

type Server struct {
	router  *gin.Engine
	deps    Dependencies
	limiter *middleware.SessionRateLimiter
	logger  *zap.Logger
	config  *config.Config
}

func NewServer(deps Dependencies, logger *zap.Logger, cfg *config.Config) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(func(c *gin.Context) {
		c.Set("logger", logger)
		c.Next()
	})
	router.Use(requestLogger(logger))
	router.Use(middleware.CORS(cfg.CORSAllowedOrigins))

	server := &Server{
		router: router,
		deps:   deps,
		limiter: middleware.NewSessionRateLimiter(middleware.RateLimiterConfig{
			LookupsPerMinute: cfg.RateLimitMessagesPerMin,
			UploadsPerHour:   cfg.RateLimitUploadsPerHour,
			BurstSize:        cfg.RateLimitBurstSize,
		}, logger),
		logger: logger,
		config: cfg,
	}

	server.setupRoutes()
	return server
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	lookupHandler := handlers.NewLookupHandler(s.deps.Recommender, s.deps.Collection, s.deps.Lookups, s.logger, s.config.MaxResults)
	preferenceHandler := handlers.NewPreferenceHandler(s.deps.Recommender, s.logger)
	collectionHandler := handlers.NewCollectionHandler(s.deps.Collection, s.deps.DB, s.logger, Version)
	accountHandler := handlers.NewAccountHandler(s.deps.Accounts, s.logger)

	requireUser := auth.RequireUser(s.deps.Authenticator)
	lookupLimit := middleware.RateLimitMiddleware(s.limiter, middleware.LimitLookup)

	s.router.GET("/", collectionHandler.Index)

	api := s.router.Group("/api/v1")
	api.Use(middleware.SessionMiddleware(false))
	api.Use(middleware.RequestTimeout(s.config.RequestTimeout))

	api.GET("/health", collectionHandler.Health)
	api.GET("/collections", collectionHandler.Collections)
	api.POST("/upload", middleware.RateLimitMiddleware(s.limiter, middleware.LimitUpload), collectionHandler.Upload)

	api.POST("/chat", lookupLimit, lookupHandler.Chat)
	api.POST("/query", lookupLimit, lookupHandler.Query)
	api.GET("/history", lookupHandler.History)
	api.POST("/premium/advice", lookupLimit, requireUser, lookupHandler.PremiumAdvice)

	api.POST("/auth/register", accountHandler.Register)
	api.POST("/auth/login", accountHandler.Login)
	api.GET("/auth/me", requireUser, accountHandler.Me)

	prefs := api.Group("/preferences", requireUser)
	prefs.POST("/city", preferenceHandler.SetCity)
	prefs.GET("/cities", preferenceHandler.ListCities)
	prefs.DELETE("/city/:city_name", preferenceHandler.DeleteCity)
}

func (s *Server) Start(ctx context.Context, addr string) error {
	s.logger.Info("Starting web server", zap.String("address", addr))
	defer s.limiter.Stop()

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Web server failed to start", zap.Error(err))
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	s.logger.Info("Shutting down web server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("Request served",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
