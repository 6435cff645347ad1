package bootstrap

import (
	"context"
	"sync"
	"time"

	"hermes/internal/adapters/config"
	"hermes/internal/adapters/providers"
	redisclient "hermes/internal/adapters/redis"
	"hermes/internal/alerting"
	"hermes/internal/api"
	"hermes/internal/services/gateway"
	"hermes/pkg/breaker"
	"hermes/pkg/errors"
	"hermes/pkg/logger"
)

// shutdownTimeout bounds the whole graceful shutdown sequence.
const shutdownTimeout = 30 * time.Second

// Container holds all application dependencies and their lifecycle.
// Components are organized in initialization order.
type Container struct {
	// Core configuration & logging
	Config       *config.Config
	Log          *logger.Logger
	ErrorTracker errors.Tracker

	// Infrastructure. Redis stays nil unless distributed rate limiting
	// is configured; everything downstream treats nil as "local only".
	Redis *redisclient.Client

	// Provider layer
	Registry *providers.Registry
	Tracker  *providers.UsageTracker
	Breakers *breaker.Set
	Notifier alerting.Notifier

	// Application layer
	Gateway    *gateway.Service
	HTTPServer *api.Server

	// Lifecycle management
	WG      *sync.WaitGroup
	Context context.Context
	Cancel  context.CancelFunc
}

// NewContainer creates a new dependency container
func NewContainer() *Container {
	ctx, cancel := context.WithCancel(context.Background())

	return &Container{
		WG:      &sync.WaitGroup{},
		Context: ctx,
		Cancel:  cancel,
	}
}

// MustInit initializes all components in the correct order
// Panics on any initialization error (fail-fast at startup)
func (c *Container) MustInit() {
	c.MustInitConfig()
	c.MustInitInfrastructure()
	c.MustInitProviders()
	c.MustInitApplication()
}

// Start launches the HTTP server in the background. A fatal server error
// cancels the container context so main can begin shutdown.
func (c *Container) Start() error {
	c.WG.Add(1)
	go func() {
		defer c.WG.Done()
		if err := c.HTTPServer.Start(); err != nil {
			c.Log.Errorf("HTTP server failed: %v", err)
			c.Cancel()
		}
	}()

	c.Log.Info("✓ All systems operational")
	return nil
}

// Shutdown performs graceful shutdown in the correct order
func (c *Container) Shutdown() {
	c.Log.Info("Initiating graceful shutdown...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Step 1: stop accepting HTTP traffic, let in-flight requests drain
	c.Log.Info("[1/3] Stopping HTTP server...")
	httpCtx, httpCancel := context.WithTimeout(shutdownCtx, 10*time.Second)
	defer httpCancel()
	if err := c.HTTPServer.Shutdown(httpCtx); err != nil {
		c.Log.Errorw("HTTP server shutdown failed", "error", err)
	}

	c.Cancel()
	c.WG.Wait()

	// Step 2: close infrastructure connections
	c.Log.Info("[2/3] Closing connections...")
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			c.Log.Errorw("Redis close failed", "error", err)
		} else {
			c.Log.Info("✓ Redis closed")
		}
	}

	// Step 3: flush telemetry
	c.Log.Info("[3/3] Flushing telemetry...")
	flushCtx, flushCancel := context.WithTimeout(shutdownCtx, 5*time.Second)
	defer flushCancel()
	if err := c.ErrorTracker.Flush(flushCtx); err != nil {
		c.Log.Warnf("Error tracker flush failed: %v", err)
	}

	c.Log.Info("✓ Shutdown complete")
	_ = logger.Sync()
}
