package bootstrap

import (
	"github.com/dustin/go-humanize"
	goredis "github.com/redis/go-redis/v9"

	"hermes/internal/adapters/config"
	errnoop "hermes/internal/adapters/errors/noop"
	"hermes/internal/adapters/errors/sentry"
	"hermes/internal/adapters/providers"
	redisclient "hermes/internal/adapters/redis"
	"hermes/internal/alerting"
	"hermes/internal/api"
	"hermes/internal/metrics"
	"hermes/internal/services/gateway"
	"hermes/pkg/breaker"
	"hermes/pkg/errors"
	"hermes/pkg/logger"
)

// ========================================
// Phase 1: Configuration & Logging
// ========================================

// MustInitConfig loads configuration and initializes logger
func (c *Container) MustInitConfig() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}
	c.Config = cfg

	// Initialize logger
	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		panic("failed to init logger: " + err.Error())
	}

	c.Log = logger.Get()
	c.Log.Infof("Starting %s %s in %s mode", cfg.App.Name, cfg.App.Version, cfg.App.Env)

	// Initialize error tracker
	c.ErrorTracker = provideErrorTracker(cfg, c.Log)
	logger.SetErrorTracker(c.ErrorTracker)
}

// ========================================
// Phase 2: Infrastructure Layer
// ========================================

// MustInitInfrastructure initializes metrics and the optional Redis client
func (c *Container) MustInitInfrastructure() {
	metrics.Init()
	c.Log.Info("✓ Metrics registered")

	if !c.Config.Redis.Configured() {
		c.Log.Info("Redis not configured, rate limiters stay process-local")
		return
	}

	c.Log.Info("Connecting to Redis...")
	redisClient, err := redisclient.NewClient(c.Config.Redis)
	if err != nil {
		c.Log.Fatalf("failed to connect redis: %v", err)
	}
	c.Redis = redisClient
	c.Log.Info("✓ Redis connected")
}

// ========================================
// Phase 3: Provider Layer
// ========================================

// MustInitProviders builds the provider registry from configured credentials
// plus the bookkeeping around it (usage tracker, circuit breakers, alerting)
func (c *Container) MustInitProviders() {
	c.Tracker = providers.NewUsageTracker()

	registry, err := providers.BuildRegistry(c.Context, c.Config, c.rawRedis())
	if err != nil {
		c.Log.Fatalf("failed to build provider registry: %v", err)
	}
	c.Registry = registry

	enabled := make([]string, 0)
	for _, info := range registry.All() {
		if info.Enabled {
			enabled = append(enabled, info.Name)
		}
	}
	if len(enabled) == 0 {
		c.Log.Warn("No providers enabled; every dispatch will fail until one is configured")
	}
	c.Log.Infow("✓ Provider registry built", "enabled", enabled)

	c.Breakers = breaker.NewSet(breaker.Config{
		FailureThreshold: c.Config.Breaker.FailureThreshold,
		ResetAfter:       c.Config.Breaker.ResetAfter,
	})

	c.Notifier = alerting.New(c.Config.Alerting)
	if c.Config.Alerting.Configured() {
		c.Log.Info("✓ Telegram alerting enabled")
	}
}

// ========================================
// Phase 4: Application Layer
// ========================================

// MustInitApplication wires the gateway service and the HTTP server
func (c *Container) MustInitApplication() {
	c.Gateway = gateway.NewService(c.Registry, c.Tracker, c.Breakers, c.Notifier)

	handler := api.NewHandler(c.Gateway, c.Config.Server.MaxBodyBytes)
	healthHandler := api.NewHealthHandler(c.Gateway, c.Redis, c.Config.App.Name, c.Config.App.Version, c.Log)

	c.HTTPServer = api.NewServer(api.ServerConfig{
		Addr:         c.Config.Server.Addr(),
		ServiceName:  c.Config.App.Name,
		Version:      c.Config.App.Version,
		ReadTimeout:  c.Config.Server.ReadTimeout,
		WriteTimeout: c.Config.Server.WriteTimeout,
		IdleTimeout:  c.Config.Server.IdleTimeout,
	}, handler, healthHandler, c.Log)

	c.Log.Infof("✓ HTTP API ready, request bodies capped at %s",
		humanize.Bytes(uint64(c.Config.Server.MaxBodyBytes)))
}

// rawRedis unwraps the optional client for consumers that take *redis.Client.
func (c *Container) rawRedis() *goredis.Client {
	if c.Redis == nil {
		return nil
	}
	return c.Redis.Client()
}

// provideErrorTracker initializes error tracking (Sentry or no-op)
func provideErrorTracker(cfg *config.Config, log *logger.Logger) errors.Tracker {
	if !cfg.ErrorTracking.Enabled || cfg.ErrorTracking.SentryDSN == "" {
		log.Info("Error tracking disabled")
		return errnoop.New()
	}

	tracker, err := sentry.New(cfg.ErrorTracking.SentryDSN, cfg.ErrorTracking.Environment)
	if err != nil {
		log.Warnf("Failed to initialize Sentry: %v", err)
		return errnoop.New()
	}

	log.Info("Error tracking initialized (Sentry)")
	return tracker
}
