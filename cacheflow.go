// =============================================================================
// Package cacheflow: One-Line Cache Manager Construction
// =============================================================================
// Provides a convenience entry point for creating a resilient cache manager
// with minimal boilerplate. Delegates to cache.NewManager and config.Loader
// internally.
//
// Usage:
//
//	import "github.com/BaSui01/cacheflow"
//
//	m, err := cacheflow.New(ctx)
//	m, err := cacheflow.New(ctx, cacheflow.WithAddr("redis:6379"))
//	m, err := cacheflow.New(ctx, cacheflow.WithConfigFile("config.yaml"))
//
// The returned manager is already initialized: the background reconnect and
// health monitor loops are running, and the first connection attempt has been
// made. Call Shutdown to stop them.
// =============================================================================
package cacheflow

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/BaSui01/cacheflow/cache"
	"github.com/BaSui01/cacheflow/config"
	"github.com/BaSui01/cacheflow/session"
)

// Option configures the manager created by New.
type Option func(*options)

type options struct {
	cfg        *config.Config
	configPath string
	logger     *zap.Logger
	registry   prometheus.Registerer
	dialer     cache.Dialer

	// Override fields, applied on top of the resolved config.
	addr     string
	password string
	db       int
	dbSet    bool
	disabled bool
}

// WithConfig sets a pre-built configuration. Overrides WithConfigFile.
func WithConfig(cfg *config.Config) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithConfigFile loads configuration from a YAML file, with CACHEFLOW_*
// environment variables applied on top.
func WithConfigFile(path string) Option {
	return func(o *options) { o.configPath = path }
}

// WithAddr sets the Redis address. Overrides the configured address.
func WithAddr(addr string) Option {
	return func(o *options) { o.addr = addr }
}

// WithPassword sets the Redis password.
func WithPassword(password string) Option {
	return func(o *options) { o.password = password }
}

// WithDB selects the Redis logical database.
func WithDB(db int) Option {
	return func(o *options) {
		o.db = db
		o.dbSet = true
	}
}

// WithLogger sets a custom zap logger. Defaults to zap.NewNop().
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithMetricsRegistry enables Prometheus metrics on the given registry.
func WithMetricsRegistry(reg prometheus.Registerer) Option {
	return func(o *options) { o.registry = reg }
}

// WithDialer injects a custom transport dialer. Mainly for tests.
func WithDialer(d cache.Dialer) Option {
	return func(o *options) { o.dialer = d }
}

// Disabled creates the manager in disabled mode: every operation degrades to
// its zero value and no connection is ever attempted.
func Disabled() Option {
	return func(o *options) { o.disabled = true }
}

// New creates and initializes a resilient cache manager.
func New(ctx context.Context, opts ...Option) (*cache.Manager, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	// Resolve configuration: explicit config, config file, or env-only.
	cfg := o.cfg
	if cfg == nil {
		loader := config.NewLoader()
		if o.configPath != "" {
			loader = loader.WithConfigPath(o.configPath)
		}
		var err error
		cfg, err = loader.Load()
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	}

	if o.addr != "" {
		cfg.Redis.Addr = o.addr
	}
	if o.password != "" {
		cfg.Redis.Password = o.password
	}
	if o.dbSet {
		cfg.Redis.DB = o.db
	}
	if o.disabled {
		cfg.Redis.Disabled = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := o.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var mgrOpts []cache.Option
	if o.dialer != nil {
		mgrOpts = append(mgrOpts, cache.WithDialer(o.dialer))
	}
	if o.registry != nil || cfg.Metrics.Enabled {
		mgrOpts = append(mgrOpts, cache.WithMetrics(cfg.Metrics.Namespace, o.registry))
	}

	m := cache.NewManager(cfg.CacheConfig(), logger, mgrOpts...)
	if err := m.Initialize(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

// Re-export the building blocks so callers never need to import subpackages.

// Manager is the resilient cache manager.
type Manager = cache.Manager

// Status is the full manager status snapshot.
type Status = cache.Status

// UserCache namespaces keys per user on top of a manager.
type UserCache = cache.UserCache

// Session is the JSON document stored per session ID.
type Session = session.Session

// SessionStore persists sessions through a manager.
type SessionStore = session.Store

// NewUserCache creates a user-scoped cache view over a manager.
var NewUserCache = cache.NewUserCache

// NewSessionStore creates a session store over a manager.
var NewSessionStore = session.NewStore

// NewSession creates an unsaved session with a generated ID.
var NewSession = session.New
