package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/klicktape/backend/internal/cache"
	"github.com/klicktape/backend/internal/config"
	"github.com/klicktape/backend/internal/database"
	"github.com/klicktape/backend/internal/feed"
	"github.com/klicktape/backend/internal/feedcache"
	"github.com/klicktape/backend/internal/handlers"
	"github.com/klicktape/backend/internal/logger"
	"github.com/klicktape/backend/internal/metrics"
	"github.com/klicktape/backend/internal/middleware"
	"github.com/klicktape/backend/internal/telemetry"
	"github.com/klicktape/backend/internal/verification"
	"github.com/klicktape/backend/internal/views"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := logger.Initialize(cfg.LogLevel, cfg.LogFile); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Close()

	logger.Log.Info("=== Klicktape backend starting ===",
		zap.String("environment", cfg.Environment))

	tp, err := telemetry.InitTracer(cfg)
	if err != nil {
		logger.Log.Warn("Tracing disabled", zap.Error(err))
	}
	defer func() {
		if err := telemetry.Shutdown(tp); err != nil {
			logger.Log.Warn("Tracer shutdown failed", zap.Error(err))
		}
	}()

	if err := database.Initialize(); err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer database.Close()

	if err := database.Migrate(); err != nil {
		logger.Log.Fatal("Failed to run migrations", zap.Error(err))
	}

	redisClient, err := cache.NewRedisClient(cfg.RedisHost, cfg.RedisPort, cfg.RedisPassword)
	if err != nil {
		logger.Log.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()

	metrics.Initialize()

	// Core feed services
	selector := feed.NewSelector(database.DB, feed.Options{
		CooldownWindow: cfg.CooldownWindow,
		DefaultLimit:   cfg.DefaultLimit,
		MaxLimit:       cfg.MaxLimit,
	}, nil)
	pageCache := feedcache.New(redisClient, cfg.CacheStaleWindow, cfg.FetchTimeout, selector.SelectFeed)
	tracker := views.NewTracker(database.DB, cfg.ViewBucket)

	referrals := verification.NewPendingReferralStore(redisClient)
	verifier := verification.NewClient(cfg.VerificationBaseURL, referrals)

	h := handlers.NewHandlers(pageCache, tracker)
	h.SetVerificationClient(verifier, referrals)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.GinLogger())
	r.Use(middleware.MetricsMiddleware())
	r.Use(otelgin.Middleware("klicktape-backend"))
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"*"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-Request-ID"}
	r.Use(cors.New(corsConfig))

	r.GET("/health", func(c *gin.Context) {
		status := http.StatusOK
		dbStatus := "ok"
		if err := database.Health(); err != nil {
			status = http.StatusServiceUnavailable
			dbStatus = "unavailable"
		}
		redisStatus := "ok"
		if err := redisClient.Ping(c.Request.Context()); err != nil {
			status = http.StatusServiceUnavailable
			redisStatus = "unavailable"
		}
		c.JSON(status, gin.H{
			"status":    "ok",
			"database":  dbStatus,
			"redis":     redisStatus,
			"timestamp": time.Now().UTC(),
			"service":   "klicktape-backend",
		})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	api.Use(middleware.RequireAuth([]byte(cfg.JWTSecret)))
	{
		api.GET("/feed", h.GetFeed)
		api.POST("/posts", h.CreatePost)
		api.GET("/posts/:id", h.GetPost)
		api.POST("/views", h.RecordView)
		api.POST("/verify", h.VerifyEmail)
		api.POST("/referrals/pending", h.SetPendingReferral)
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		logger.Log.Info("Klicktape backend listening", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Log.Info("Server exited")
}
