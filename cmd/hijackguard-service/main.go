// Package main is the entry point for the hijackguard service.
// It scores login attempts for account-takeover risk, issues step-up
// challenges and aggregates federated model updates.
package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/openidx/hijackguard/internal/common/config"
	"github.com/openidx/hijackguard/internal/common/database"
	apperrors "github.com/openidx/hijackguard/internal/common/errors"
	"github.com/openidx/hijackguard/internal/common/health"
	"github.com/openidx/hijackguard/internal/common/logger"
	"github.com/openidx/hijackguard/internal/common/middleware"
	"github.com/openidx/hijackguard/internal/common/resilience"
	"github.com/openidx/hijackguard/internal/common/shutdown"
	"github.com/openidx/hijackguard/internal/common/tracing"
	"github.com/openidx/hijackguard/internal/guard"
	"github.com/openidx/hijackguard/internal/profile"
	"github.com/openidx/hijackguard/internal/risk"
)

var (
	Version    = "dev"
	BuildTime  = "unknown"
	CommitHash = "unknown"
)

const serviceName = "hijackguard-service"

func main() {
	cfg, err := config.Load(serviceName)
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}

	log := logger.WithService(logger.NewWithLevel(cfg.Environment, cfg.LogLevel), serviceName)
	defer log.Sync()

	log.Info("Starting hijackguard service",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("commit", CommitHash),
		zap.String("profile_store", cfg.ProfileStore),
	)

	ctx := context.Background()
	sm := shutdown.NewShutdownManager(log, cfg.ShutdownTimeout)
	hs := health.NewHealthService(log)
	hs.SetVersion(Version)

	shutdownTracing, err := tracing.Init(ctx, tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: serviceName,
		Environment: cfg.Environment,
		SampleRate:  cfg.Tracing.SampleRate,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	sm.RegisterHook("tracing", shutdownTracing)

	var redis *database.RedisClient
	if cfg.ProfileCacheEnabled || cfg.ModelSnapshotEnabled {
		redis, err = database.NewRedis(cfg.RedisURL)
		if err != nil {
			log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		sm.RegisterHook("redis", func(context.Context) error { return redis.Close() })
		hs.RegisterCheck(health.NewRedisChecker(redis))
	}

	profiles, err := buildProfileStore(ctx, cfg, redis, sm, hs, log)
	if err != nil {
		log.Fatal("Failed to initialize profile store", zap.Error(err))
	}

	var snapshots risk.SnapshotStore
	if cfg.ModelSnapshotEnabled {
		snapshots = risk.NewRedisSnapshotStore(redis)
	}
	model := risk.NewGlobalModel(risk.NewModel(risk.NumFeatures, cfg.Risk.LearningRate), snapshots, log)
	if restored, err := model.Restore(ctx); err != nil {
		log.Warn("Ignoring unusable model snapshot", zap.Error(err))
	} else if restored {
		log.Info("Global model restored from snapshot")
	}
	hs.RegisterCheck(health.NewFuncChecker("risk_model", model.CheckFinite))

	svc := guard.NewService(profiles, model, guard.Config{
		Threshold:             cfg.Risk.Threshold,
		MaxChallengeQuestions: cfg.Risk.MaxChallengeQuestions,
	}, log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(apperrors.ErrorHandler())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(middleware.RequestID())
	router.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	router.Use(logger.GinMiddleware(log))
	router.Use(middleware.PrometheusMetrics(serviceName))

	router.GET("/metrics", middleware.MetricsHandler())
	hs.RegisterStandardRoutes(router)
	guard.NewHandler(svc, log).RegisterRoutes(router)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	if err := sm.GracefulServe("http", server); err != nil {
		log.Fatal("Failed to start server", zap.Error(err))
	}

	sm.WaitForShutdown()
}

// buildProfileStore selects the backing repository, optionally seeds it with
// the demo users and wraps it in the Redis cache.
func buildProfileStore(ctx context.Context, cfg *config.Config, redis *database.RedisClient,
	sm *shutdown.ShutdownManager, hs *health.HealthService, log *zap.Logger) (profile.Repository, error) {

	var (
		repo   profile.Repository
		putter profile.Putter
	)

	switch cfg.ProfileStore {
	case config.ProfileStorePostgres:
		db, err := database.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		sm.RegisterHook("postgres", func(context.Context) error { return db.Close() })
		hs.RegisterCheck(health.NewPostgresChecker(db))

		pg := profile.NewPostgresRepository(db, log)
		if err := pg.EnsureSchema(ctx); err != nil {
			return nil, err
		}

		breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name:         "profile_postgres",
			Threshold:    5,
			ResetTimeout: 30 * time.Second,
			Logger:       log,
		})
		breakers := resilience.NewRegistry()
		breakers.Register(breaker)
		hs.RegisterCheck(health.NewFuncChecker("circuit_breakers", breakers.Check))

		repo, putter = profile.NewGuardedRepository(pg, breaker), pg
	default:
		mem := profile.NewMemoryRepository()
		repo, putter = mem, mem
	}

	if cfg.SeedDemoProfiles {
		if err := profile.Seed(ctx, putter, profile.DemoProfiles()); err != nil {
			return nil, fmt.Errorf("seed demo profiles: %w", err)
		}
		log.Info("Seeded demo profiles", zap.Int("count", len(profile.DemoProfiles())))
	}

	if cfg.ProfileCacheEnabled {
		cached := profile.NewCachedRepository(repo, redis.Client, cfg.ProfileCacheTTL, log)
		if cfg.SeedDemoProfiles {
			// Reseeding may have changed profiles cached by a previous run
			for _, p := range profile.DemoProfiles() {
				if err := cached.Invalidate(ctx, p.UserID); err != nil {
					log.Warn("Failed to invalidate cached profile", zap.String("user_id", p.UserID), zap.Error(err))
				}
			}
		}
		repo = cached
	}
	return repo, nil
}
