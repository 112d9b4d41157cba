package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"gamelend/internal/config"
	"gamelend/internal/database"
	"gamelend/internal/middleware"
	"gamelend/internal/modules/auth"
	"gamelend/internal/modules/lifecycle"
	"gamelend/internal/modules/live"
	"gamelend/internal/modules/queue"
	"gamelend/internal/modules/rating"
	jwtsvc "gamelend/internal/pkg/jwt"
	"gamelend/internal/pkg/logger"
	"gamelend/internal/repository"
)

const (
	cleanupInterval = 5 * time.Minute
	viewIdleTTL     = 30 * time.Minute
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logg := logger.New(cfg.AppEnv)
	defer func() { _ = logg.Sync() }()

	if config.IsProdLike(cfg.AppEnv) {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.Connect(cfg.DatabaseURL, logg)
	if err != nil {
		logg.Fatalw("database connect failed", "error", err)
	}
	if err := database.Migrate(db); err != nil {
		logg.Fatalw("database migrate failed", "error", err)
	}

	// repositories
	backend := repository.NewBackendClient(cfg.BackendBaseURL, cfg.BackendTimeout, logg)
	requestRepo := repository.NewBorrowRequestRepository(backend)
	reviewRepo := repository.NewReviewRepository(backend)
	sessionRepo := repository.NewSessionRepository(db)

	tokens := jwtsvc.New(cfg.JWTSecret, cfg.SessionTTL)
	if !tokens.Verifies() {
		logg.Warnw("JWT_SECRET not set, backend tokens are read without signature checks")
	}

	// services
	ratingService := rating.NewService(requestRepo, reviewRepo, logg)
	engine := lifecycle.NewEngine(requestRepo, ratingService, logg)
	views := lifecycle.NewViews()
	queueService := queue.NewService(engine, views, logg)
	hub := live.NewHub()
	authService := auth.NewService(sessionRepo, tokens, views, hub, cfg.SessionTTL, logg)

	// handlers
	authHandler := auth.NewHandler(authService, auth.CookieConfig{
		Name:   cfg.SessionCookieName,
		Secure: cfg.CookieSecure,
	})
	queueHandler := queue.NewHandler(queueService)
	liveHandler := live.NewHandler(hub, queueService, engine, cfg.PollInterval, cfg.CORSAllowedOrigins, logg)

	limiter := middleware.NewActionLimiter(cfg.ActionRateLimit, cfg.ActionRateBurst)
	sessionAuth := middleware.SessionAuth(sessionRepo, tokens, cfg.SessionCookieName)

	r := gin.New()
	r.Use(middleware.ErrorLogger(logg))
	r.Use(middleware.CORS(cfg.CORSAllowedOrigins))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1")
	{
		authHandler.RegisterPublicRoutes(v1)

		protected := v1.Group("")
		protected.Use(sessionAuth)
		{
			authHandler.RegisterProtectedRoutes(protected)

			actions := protected.Group("")
			actions.Use(middleware.RateLimit(limiter))
			queueHandler.RegisterRoutes(protected, actions)
		}
	}

	ws := r.Group("/ws")
	ws.Use(sessionAuth)
	liveHandler.RegisterRoutes(ws)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	go runCleanup(ctx, logg, sessionRepo, views, limiter)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       time.Minute,
	}

	shutdown := make(chan error, 1)
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		s := <-quit
		logg.Infow("signal caught", "signal", s.String())

		stop()
		hub.Close()

		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		shutdown <- srv.Shutdown(sctx)
	}()

	logg.Infow("server has started", "addr", cfg.HTTPAddr, "env", cfg.AppEnv, "backend", cfg.BackendBaseURL)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		logg.Fatalw("server failed", "error", err)
	}
	if err := <-shutdown; err != nil {
		logg.Errorw("shutdown failed", "error", err)
	}
	logg.Infow("server stopped")
}

// runCleanup expires stored sessions, idle views and stale limiter buckets.
func runCleanup(ctx context.Context, logg *zap.SugaredLogger, sessions *repository.SessionRepository, views *lifecycle.Views, limiter *middleware.ActionLimiter) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := sessions.DeleteExpired(ctx)
			if err != nil {
				logg.Warnw("session cleanup failed", "error", err)
			}
			cutoff := time.Now().Add(-viewIdleTTL)
			dropped := views.Sweep(cutoff)
			buckets := limiter.Sweep(cutoff)
			if removed > 0 || dropped > 0 || buckets > 0 {
				logg.Infow("cleanup", "sessions", removed, "views", dropped, "limiters", buckets)
			}
		}
	}
}
