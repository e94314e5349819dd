// Package main runs the live tutoring session coordination server with
// WebSocket signaling and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/peerlearn/backend/config"
	"github.com/peerlearn/backend/internal/auth"
	"github.com/peerlearn/backend/internal/middleware"
	"github.com/peerlearn/backend/internal/notifications"
	"github.com/peerlearn/backend/internal/realtime"
	"github.com/peerlearn/backend/internal/sessionrequests"
	"github.com/peerlearn/backend/pkg/database"
	"github.com/peerlearn/backend/pkg/redis"
	"github.com/peerlearn/backend/pkg/response"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	pubsub := realtime.NewRedisPubSub(rdb.Client, logger)
	hub := realtime.NewHub(logger, pubsub, pubsub)

	// Auth / users
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)

	// Notifications
	notificationRepo := notifications.NewRepository(pool)
	notificationHandler := notifications.NewHandler(notificationRepo)
	dispatcher := notifications.NewDispatcher(notificationRepo, hub, logger)

	// Session requests
	requestRepo := sessionrequests.NewRepository(pool)
	pendingTTL := time.Duration(cfg.Session.PendingTTLMinutes) * time.Minute
	requestHandler := sessionrequests.NewHandler(requestRepo, authRepo, dispatcher, hub, pendingTTL, logger)

	jwtValidate := func(token string) (*realtime.Identity, error) {
		claims, err := jwtService.Validate(token)
		if err != nil {
			return nil, err
		}
		return &realtime.Identity{UserID: claims.UserID, Name: claims.Name, Role: claims.Role}, nil
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health and metrics
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// ICE servers advertised to clients
	router.GET("/webrtc/ice-servers", func(c *gin.Context) {
		response.OK(c, gin.H{"ice_urls": cfg.WebRTC.ICEUrls})
	})

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/register", authHandler.Register)
	}

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		api.GET("/users/me", authHandler.Me)
		api.PATCH("/users/session-status", middleware.RequireRole("instructor"), authHandler.UpdateSessionStatus)

		api.POST("/session-requests", middleware.RequireRole("student"), requestHandler.Create)
		api.GET("/session-requests", requestHandler.List)
		api.GET("/session-requests/:id", requestHandler.GetByID)
		api.PATCH("/session-requests/:id", middleware.RequireRole("instructor"), requestHandler.Update)
		api.DELETE("/session-requests/:id", middleware.RequireRole("instructor"), requestHandler.Delete)

		api.GET("/notifications", notificationHandler.List)
		api.PATCH("/notifications/:id/read", notificationHandler.MarkRead)
		api.PATCH("/notifications", notificationHandler.MarkAllRead)
	}

	// WebSocket (token in query; no Authorization header required)
	router.GET("/ws", realtime.ServeWs(hub, logger, jwtValidate))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
