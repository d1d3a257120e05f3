package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/tidechat/server/internal/v1/config"
	"github.com/tidechat/server/internal/v1/handlers"
	"github.com/tidechat/server/internal/v1/health"
	"github.com/tidechat/server/internal/v1/hub"
	"github.com/tidechat/server/internal/v1/logging"
	"github.com/tidechat/server/internal/v1/middleware"
	"github.com/tidechat/server/internal/v1/ratelimit"
	"github.com/tidechat/server/internal/v1/store"
	"github.com/tidechat/server/internal/v1/tracing"
	"github.com/tidechat/server/internal/v1/transport"
)

const serviceName = "chat-core"

func main() {
	// Load .env file for local development.
	// Try multiple paths to handle different ways of running the app
	envPaths := []string{".env", "../../../.env", "../../.env"}
	var envLoaded bool

	for _, path := range envPaths {
		if err := godotenv.Load(path); err == nil {
			slog.Info("Loaded environment from", "path", path)
			envLoaded = true
			break
		}
	}

	if !envLoaded {
		slog.Warn("No .env file found in any expected location, relying on environment variables")
	}

	cfg, err := config.ValidateEnv()
	if err != nil {
		slog.Error("Environment validation failed", "error", err)
		os.Exit(1)
	}

	if err := logging.Initialize(cfg.DevelopmentMode); err != nil {
		slog.Error("Logger initialization failed", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	// --- Tracing (optional) ---
	if cfg.OTLPEndpoint != "" {
		tp, err := tracing.InitTracer(ctx, serviceName, cfg.OTLPEndpoint)
		if err != nil {
			logging.Error(ctx, "tracer initialization failed; continuing without tracing")
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = tp.Shutdown(shutdownCtx)
			}()
		}
	}

	// --- Backends ---
	st, err := store.New(ctx, cfg)
	if err != nil {
		logging.Fatal(ctx, "store initialization failed: "+err.Error())
	}

	h := hub.New()

	limiter, err := ratelimit.New(cfg, st.Redis)
	if err != nil {
		logging.Fatal(ctx, "rate limiter initialization failed: "+err.Error())
	}

	// --- Set up Server ---
	if !cfg.DevelopmentMode {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	if cfg.OTLPEndpoint != "" {
		router.Use(otelgin.Middleware(serviceName))
	}

	// Cors
	corsCfg := cors.DefaultConfig()
	corsCfg.AllowCredentials = true
	if cfg.AllowedOrigins != "" {
		corsCfg.AllowOrigins = strings.Split(cfg.AllowedOrigins, ",")
	} else {
		corsCfg.AllowOrigins = []string{"http://localhost:3000"}
	}
	router.Use(cors.New(corsCfg))

	// Routing
	api := handlers.New(st, h, cfg)
	ws := transport.NewHandler(h, st, limiter, cfg)

	router.GET("/ws", ws.ServeWs)

	apiGroup := router.Group("/api", limiter.APIMiddleware(), middleware.RequestTimeout(10*time.Second))
	{
		apiGroup.POST("/login", api.Login)

		authed := apiGroup.Group("", api.RequireAuth())
		{
			authed.POST("/logout", api.Logout)
			authed.GET("/sessions", api.ListSessions)
			authed.DELETE("/sessions/:token", api.RevokeSession)
			authed.GET("/profile", api.Profile)
			authed.PUT("/profile", api.UpdateProfile)
			authed.PUT("/password", api.UpdatePassword)
			authed.GET("/users", api.FindUser)

			admin := authed.Group("/admin", api.RequireAdmin())
			{
				admin.GET("/hub", api.HubSnapshot)
				admin.GET("/users", api.ListUsers)
				admin.POST("/users", api.CreateUser)
				admin.PUT("/users/:id", api.UpdateUser)
				admin.DELETE("/users/:id", api.DeleteUser)
				admin.GET("/filelinks", api.ListFileLinks)
				admin.POST("/filelinks", api.CreateFileLink)
				admin.DELETE("/filelinks/:id", api.DeleteFileLink)
			}
		}
	}

	// Static assets: avatars, archived uploads, and shared files.
	router.Static("/avatar", cfg.AvatarDir)
	router.Static("/archive", cfg.ArchiveDir)
	router.Static("/share", cfg.ShareDir)

	// Prometheus metrics endpoint
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Health check endpoints
	healthHandler := health.NewHandler(st)
	router.GET("/health/live", healthHandler.Liveness)
	router.GET("/health/ready", healthHandler.Readiness)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// --- Graceful Shutdown ---
	// Start the server in a goroutine so it doesn't block.
	go func() {
		logging.Info(ctx, "API server starting on port "+cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Error(ctx, "server failed: "+err.Error())
			syscall.Kill(os.Getpid(), syscall.SIGTERM)
		}
	}()

	// Wait for an interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logging.Info(ctx, "shutting down server")

	// The context is used to inform the server it has 30 seconds to finish
	// the requests it is currently handling
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error(ctx, "server forced to shutdown: "+err.Error())
	}

	if err := st.Close(); err != nil {
		logging.Error(ctx, "error closing store: "+err.Error())
	}

	logging.Info(ctx, "server exiting")
}
