package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"sportsdash/internal/admin"
	"sportsdash/internal/claim"
	"sportsdash/internal/config"
	"sportsdash/internal/db"
	"sportsdash/internal/events"
	"sportsdash/internal/guard"
	"sportsdash/internal/keycode"
	"sportsdash/internal/keymanager"
	"sportsdash/internal/logger"
	"sportsdash/internal/ratelimit"
	"sportsdash/internal/scheduler"
	"sportsdash/internal/security"
	"sportsdash/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
)

// customRecovery is a middleware that recovers from panics and handles http.ErrAbortHandler gracefully.
func customRecovery(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if recovered := recover(); recovered != nil {
				if recovered == http.ErrAbortHandler {
					log.Warn("Client connection aborted", "path", c.Request.URL.Path)
					c.Abort()
					return
				}

				log.Error("Panic recovered",
					"error", recovered,
					"path", c.Request.URL.Path,
					"stack", string(debug.Stack()),
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"success": false,
					"error":   "Something went wrong. Please try again.",
				})
			}
		}()
		c.Next()
	}
}

// app holds the wired components behind the HTTP router.
type app struct {
	limiter   *ratelimit.Limiter
	keys      *keymanager.KeyManager
	events    *events.Manager
	claims    *claim.Service
	scheduler *scheduler.Scheduler
	closers   []io.Closer
}

func (a *app) Close() {
	for _, c := range a.closers {
		_ = c.Close()
	}
}

func newRateLimitStore(cfg *config.Config, log *slog.Logger) (ratelimit.Store, io.Closer, error) {
	switch cfg.RateLimit.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		log.Info("Using redis rate limit store", "addr", cfg.Redis.Addr)
		return ratelimit.NewRedisStore(client), client, nil
	default:
		return ratelimit.NewMemoryStore(), nil, nil
	}
}

func buildApp(cfg *config.Config, log *slog.Logger, dbService db.Service) (*app, error) {
	a := &app{}

	store, closer, err := newRateLimitStore(cfg, log)
	if err != nil {
		return nil, err
	}
	if closer != nil {
		a.closers = append(a.closers, closer)
	}

	env := cfg.Env()
	a.limiter, err = ratelimit.New(env, cfg.RateLimit.Classes, store, log)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create rate limiter: %w", err)
	}
	g := guard.New(security.NewOriginGuard(env), a.limiter, log)

	objects, err := storage.NewLocalStore(cfg.Storage.Root)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.keys = keymanager.NewKeyManager(dbService, g, keycode.New(), cfg.Cache.KeyListTTL, log)
	a.events = events.NewManager(dbService, g, objects, a.keys, cfg.Storage.MaxUploadBytes, log)
	a.claims = claim.NewService(dbService, g, a.keys, log)
	a.scheduler = scheduler.NewScheduler(a.limiter, a.keys, cfg.RateLimit.SweepInterval, log)
	return a, nil
}

func newRouter(cfg *config.Config, log *slog.Logger, a *app) (*gin.Engine, error) {
	router := gin.New()
	// Client IPs key the rate limiter, so forwarding headers only count when
	// they come from a configured proxy.
	if err := router.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, fmt.Errorf("invalid trusted proxies: %w", err)
	}
	// Use our custom recovery middleware instead of the default one.
	router.Use(customRecovery(log))

	// If debug mode is enabled, add the logger middleware
	if cfg.Debug {
		router.Use(gin.Logger())
	}

	admin.SetupRoutes(router, a.keys, a.events, a.claims)
	return router, nil
}

func setupAndRunServer(cfg *config.Config, log *slog.Logger, dbService db.Service) error {
	a, err := buildApp(cfg, log, dbService)
	if err != nil {
		return err
	}
	defer a.Close()

	router, err := newRouter(cfg, log, a)
	if err != nil {
		return err
	}

	if err := a.scheduler.Start(); err != nil {
		return err
	}
	defer a.scheduler.Stop()

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: router,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("Starting server", "port", cfg.Port, "environment", string(cfg.Env()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-serverErr:
		return fmt.Errorf("failed to start server: %w", err)
	case <-quit:
	}
	log.Info("Shutting down server...")

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info("Server exiting")
	return nil
}

func main() {
	// A missing .env file is fine.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("Failed to load .env file", "error", err)
	}

	// Load configuration
	cfg, warning, err := config.LoadConfig("config.yaml")
	if err != nil {
		// Use a temporary logger for startup errors
		slog.Error("Error loading configuration", "error", err)
		os.Exit(1)
	}

	// Setup logger
	var log *slog.Logger
	if cfg.Env() == config.Development {
		log = logger.NewText(os.Stdout, cfg.Debug)
	} else {
		log = logger.New(cfg.Debug)
	}
	log.Info("Logger initialized", "debug_mode", cfg.Debug)
	if warning != "" {
		log.Warn(warning)
	}

	// Initialize database
	dbService, err := db.NewService(cfg.Database, db.WithLogger(log))
	if err != nil {
		log.Error("Error initializing database", "error", err)
		os.Exit(1)
	}
	log.Info("Database initialized", "type", cfg.Database.Type)

	if err := setupAndRunServer(cfg, log, dbService); err != nil {
		log.Error("Server error", "error", err)
		os.Exit(1)
	}
}
