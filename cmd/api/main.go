// Package main is the entry point for the stream-resolver API.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"stream-resolver/internal/app/service"
	"stream-resolver/internal/config"
	"stream-resolver/internal/domain"
	"stream-resolver/internal/infra/manifest"
	"stream-resolver/internal/infra/memory"
	"stream-resolver/internal/infra/metadata/tmdb"
	"stream-resolver/internal/infra/postgres"
	"stream-resolver/internal/infra/postgres/migrations"
	"stream-resolver/internal/infra/provider"
	"stream-resolver/internal/infra/provider/registry"
	rediscache "stream-resolver/internal/infra/redis"
	"stream-resolver/internal/job"
	"stream-resolver/internal/logger"
	"stream-resolver/internal/transport/httpserver"
	"stream-resolver/internal/transport/httpserver/middleware"
	"stream-resolver/internal/validator"
	"stream-resolver/pkg/locker"
)

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log, err := logger.New(
		logger.Config{
			Level:  cfg.Logger.Level,
			Format: cfg.Logger.Format,
			Output: cfg.Logger.Output,
		},
		logger.SentryConfig{
			Enabled:     cfg.Sentry.Enabled,
			DSN:         cfg.Sentry.DSN,
			Environment: cfg.Sentry.Environment,
			SampleRate:  cfg.Sentry.SampleRate,
		},
	)
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting stream-resolver",
		zap.String("env", cfg.App.Env),
		zap.Int("port", cfg.App.Port),
		zap.Strings("providers", cfg.Providers.Enabled),
	)

	ctx := context.Background()
	var readiness []middleware.ReadinessCheck

	// Redis backs the redis cache and the warm scheduler lock.
	var redisClient *redis.Client
	if (cfg.Cache.Enabled && cfg.Cache.Backend == "redis") || cfg.Warm.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Fatal("failed to connect to Redis", zap.Error(err))
		}
		defer func() { _ = redisClient.Close() }()
		log.Info("connected to Redis", zap.String("addr", cfg.Redis.Addr()))

		readiness = append(readiness, func(ctx context.Context) bool {
			return redisClient.Ping(ctx).Err() == nil
		})
	}

	var cache domain.StreamCache
	if cfg.Cache.Enabled {
		switch cfg.Cache.Backend {
		case "memory":
			cache = memory.NewStore(cfg.Cache.MemorySize, log.Logger)
		case "redis":
			cache = rediscache.NewCache(redisClient, log.Logger, cfg.Cache.KeyPrefix)
		case "postgres":
			db, err := postgres.NewConnection(
				postgres.Config{
					DSN:          cfg.Database.DSN(),
					MaxOpenConns: cfg.Database.MaxOpenConns,
					MaxIdleConns: cfg.Database.MaxIdleConns,
					MaxLifetime:  cfg.Database.MaxLifetime,
					LogQueries:   cfg.App.Debug,
				},
				log.Logger,
			)
			if err != nil {
				log.Fatal("failed to connect to database", zap.Error(err))
			}
			defer func() { _ = postgres.Close(db) }()

			if err := migrations.Run(db); err != nil {
				log.Fatal("failed to run migrations", zap.Error(err))
			}
			log.Info("database migrations completed")

			store := postgres.NewStore(db, log.Logger)
			cache = store
			readiness = append(readiness, func(ctx context.Context) bool {
				return store.Ping(ctx) == nil
			})
		}
		log.Info("cache enabled",
			zap.String("backend", cfg.Cache.Backend),
			zap.Duration("ttl", cfg.Cache.TTL),
		)
	} else {
		log.Info("cache disabled")
	}

	metadata := tmdb.New(
		tmdb.Config{
			Client:    registry.ClientConfig(cfg.Metadata.Endpoint),
			APIKey:    cfg.Metadata.APIKey,
			CacheTTL:  cfg.Metadata.CacheTTL,
			CacheSize: cfg.Metadata.CacheSize,
		},
		log.Logger,
	)

	var analyzer domain.ManifestAnalyzer
	if cfg.Manifest.Enabled {
		analyzer = manifest.NewAnalyzer(provider.ClientConfig{Timeout: cfg.Manifest.Timeout}, log.Logger)
	}

	linkValidator := provider.NewLinkValidator(
		provider.ClientConfig{Timeout: cfg.Validation.Timeout},
		cfg.Validation.TrustedHosts,
		log.Logger,
	)

	providers, err := registry.NewProviders(
		cfg.Providers,
		registry.Deps{
			Metadata:  metadata,
			Analyzer:  analyzer,
			Validator: linkValidator,
		},
		log.Logger,
	)
	if err != nil {
		log.Fatal("failed to create providers", zap.Error(err))
	}

	resolveSvc := service.NewResolveService(
		providers,
		cache,
		service.ResolveConfig{
			CacheTTL:        cfg.Cache.TTL,
			ProviderTimeout: cfg.Providers.Timeout,
		},
		log.Logger,
	)

	server := httpserver.NewServer(
		httpserver.ServerConfig{
			Name:      cfg.App.Name,
			Port:      cfg.App.Port,
			BodyLimit: 64 * 1024,
		},
		resolveSvc,
		validator.New(),
		log.Logger,
		readiness...,
	)

	var scheduler *job.WarmScheduler
	if cfg.Warm.Enabled {
		items, err := job.ParseItems(cfg.Warm.Items)
		if err != nil {
			log.Fatal("invalid warm items", zap.Error(err))
		}

		scheduler = job.NewWarmScheduler(
			resolveSvc,
			job.WarmConfig{
				Interval: cfg.Warm.Interval,
				Timeout:  cfg.Warm.Timeout,
				Items:    items,
			},
			locker.NewRedisLocker(redisClient, cfg.Cache.KeyPrefix, log.Logger),
			log.Logger,
		)
		scheduler.Start(cfg.Warm.OnStartup)
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info("shutdown signal received")

		if scheduler != nil {
			scheduler.Stop()
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.App.ShutdownWithContext(ctx); err != nil {
			log.Error("server shutdown error", zap.Error(err))
		}
	}()

	if err := server.Start(cfg.App.Port); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}
