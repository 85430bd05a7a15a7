// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/crm-governance/internal/authority"
	"github.com/javajoker/crm-governance/internal/config"
	"github.com/javajoker/crm-governance/internal/database"
	"github.com/javajoker/crm-governance/internal/events"
	"github.com/javajoker/crm-governance/internal/i18n"
	"github.com/javajoker/crm-governance/internal/middleware"
	"github.com/javajoker/crm-governance/internal/observability"
	"github.com/javajoker/crm-governance/internal/policy"
	"github.com/javajoker/crm-governance/internal/router"
	"github.com/javajoker/crm-governance/internal/utils"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	configureLogging(cfg.Log)

	utils.SetJWTSecret(cfg.JWT.SecretKey)

	roles, err := authority.NewHierarchy(cfg.Authority.Roles)
	if err != nil {
		logrus.WithError(err).Fatal("Invalid authority roles")
	}
	logrus.WithField("roles", roles.Roles()).Info("Authority hierarchy loaded")

	// Seed document doubles as the fallback for tenants without stored policies
	seed := policy.DefaultDocument()
	if cfg.Policy.SeedPath != "" {
		doc, err := policy.LoadFile(cfg.Policy.SeedPath)
		if err != nil {
			logrus.WithError(err).WithField("path", cfg.Policy.SeedPath).Fatal("Failed to load policy seed")
		}
		seed = *doc
	}

	// Initialize database
	db, err := database.Initialize(cfg.Database)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize database")
	}
	defer database.Close(db)

	// Run database migrations
	if err := database.RunMigrations(db); err != nil {
		logrus.WithError(err).Fatal("Failed to run migrations")
	}
	if err := database.SeedPolicies(db, cfg.Policy.DefaultTenant, seed); err != nil {
		logrus.WithError(err).Fatal("Failed to seed policies")
	}

	// Initialize i18n
	if err := i18n.Initialize(cfg.I18n.LocalesPath, cfg.I18n.DefaultLocale); err != nil {
		logrus.WithError(err).Fatal("Failed to initialize i18n")
	}

	shutdownTracing, err := observability.InitTracing(cfg.Tracing, cfg.Environment)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize tracing")
	}

	var publisher events.Publisher = events.NewRedisPublisher(nil)
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			logrus.WithError(err).Warn("Redis unavailable, governance events will be dropped")
		}
		cancel()
		publisher = events.NewRedisPublisher(rdb)
	}

	limiter := middleware.NewRateLimiterFromConfig(cfg.RateLimit)
	defer limiter.Stop()

	// Set Gin mode
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize router
	r := router.Initialize(cfg, router.Dependencies{
		DB:        db,
		Roles:     roles,
		Policies:  policy.NewStore(db, seed),
		Publisher: publisher,
		Limiter:   limiter,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logrus.WithField("addr", srv.Addr).Info("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down server...")

	// Create a deadline for shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Shutdown server
	if err := srv.Shutdown(ctx); err != nil {
		logrus.WithError(err).Error("Server forced to shutdown")
	}
	if err := shutdownTracing(ctx); err != nil {
		logrus.WithError(err).Warn("Failed to flush traces")
	}

	logrus.Info("Server exited")
}

func configureLogging(cfg config.LogConfig) {
	if cfg.Format == "text" {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		logrus.WithField("level", cfg.Level).Warn("Unknown log level, using info")
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
}
