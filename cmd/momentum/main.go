package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/momentum-hq/momentum/internal/config"
	dbRedis "github.com/momentum-hq/momentum/internal/db/redis"
	logpkg "github.com/momentum-hq/momentum/internal/logger"
	"github.com/momentum-hq/momentum/internal/metrics"
	"github.com/momentum-hq/momentum/internal/registry"
	documentrepo "github.com/momentum-hq/momentum/internal/repository/document"
	"github.com/momentum-hq/momentum/internal/repository/memory"
	versionrepo "github.com/momentum-hq/momentum/internal/repository/version"
	"github.com/momentum-hq/momentum/internal/schema"
	chiTransport "github.com/momentum-hq/momentum/internal/transport/chi"
	"github.com/momentum-hq/momentum/internal/transport/webhook"
	batchuc "github.com/momentum-hq/momentum/internal/usecase/batch"
	healthuc "github.com/momentum-hq/momentum/internal/usecase/health"
	"github.com/momentum-hq/momentum/internal/usecase/lifecycle"
	transferuc "github.com/momentum-hq/momentum/internal/usecase/transfer"
	versioninguc "github.com/momentum-hq/momentum/internal/usecase/versioning"
	"github.com/momentum-hq/momentum/internal/version"
)

func main() {
	// .env is optional; real deployments set variables in the environment.
	_ = godotenv.Load()

	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting momentum API server",
		zap.String("build", version.String()),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
	)

	backend, err := buildBackend(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create storage backend", zap.Error(err))
	}
	defer backend.close()

	metrics.RegisterEngineMetrics()

	reg, err := buildRegistry(cfg)
	if err != nil {
		logger.Fatal("Failed to build collection registry", zap.Error(err))
	}
	logger.Info("Collections registered", zap.Strings("slugs", reg.Slugs()))

	// Webhook dispatcher — composition root decides between a real endpoint
	// and the no-op notifier.
	var notifier lifecycle.Notifier
	var webhookCheck healthuc.WebhookChecker
	var dispatcher *webhook.Dispatcher
	if cfg.Webhook.URL != "" {
		dispatcher = webhook.New(
			cfg.Webhook.URL, cfg.Webhook.Secret,
			time.Duration(cfg.Webhook.TimeoutSec)*time.Second, logger,
		)
		notifier = dispatcher
		webhookCheck = dispatcher
		logger.Info("Webhook delivery enabled", zap.String("url", cfg.Webhook.URL))
	}

	lifecycleSvc := lifecycle.New(reg, backend.storage, notifier, logger).
		WithPagination(cfg.Pagination.DefaultPageSize, cfg.Pagination.MaxPageSize)
	versionsSvc := versioninguc.New(reg, backend.versions, backend.storage, logger)
	batchSvc := batchuc.New(lifecycleSvc)
	transferSvc := transferuc.New(reg, lifecycleSvc, lifecycleSvc, logger)
	healthSvc := healthuc.New(backend.pinger, webhookCheck)

	server := chiTransport.NewServer(lifecycleSvc, versionsSvc, batchSvc, transferSvc, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.JWTAuthMiddleware(cfg.Auth.JWTSecret))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}
	if dispatcher != nil {
		dispatcher.Wait()
	}

	logger.Info("Server stopped gracefully")
}

// backend bundles the driver-specific implementations behind the engine's
// storage contracts.
type backend struct {
	storage  lifecycle.Storage
	versions versioninguc.Repository
	pinger   healthuc.StoragePinger
	close    func()
}

func buildBackend(cfg config.Config, logger *zap.Logger) (*backend, error) {
	switch cfg.Database.Driver {
	case "redis":
		store, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Database.Addrs,
			Password: cfg.Database.Password,
		})
		if err != nil {
			return nil, fmt.Errorf("create redis store: %w", err)
		}
		readiness := time.Duration(cfg.Database.ReadinessTimeout) * time.Second
		if err := store.WaitForReady(context.Background(), readiness); err != nil {
			store.Close()
			return nil, fmt.Errorf("database not ready: %w", err)
		}
		logger.Info("Connected to database", zap.Strings("addrs", cfg.Database.Addrs))
		return &backend{
			storage:  documentrepo.New(store),
			versions: versionrepo.New(store),
			pinger:   store,
			close:    store.Close,
		}, nil
	case "memory":
		mem := memory.New()
		logger.Info("Using in-memory storage; data will not survive a restart")
		return &backend{
			storage:  mem,
			versions: mem,
			pinger:   mem,
			close:    func() {},
		}, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}

func buildRegistry(cfg config.Config) (*registry.Registry, error) {
	builder := registry.NewBuilder()
	if cfg.Schema.Path != "" {
		cols, err := schema.Load(cfg.Schema.Path)
		if err != nil {
			return nil, err
		}
		for _, col := range cols {
			builder.AddCollection(col)
		}
	}
	return builder.Build()
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.WithContext(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
