package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"

	"communitybot/internal/audit"
	"communitybot/internal/audit/sink/kafka"
	auditmemory "communitybot/internal/audit/store/memory"
	auditpostgres "communitybot/internal/audit/store/postgres"
	"communitybot/internal/backend"
	"communitybot/internal/cache"
	guildports "communitybot/internal/guild/ports"
	guildmemory "communitybot/internal/guild/store/memory"
	guildpostgres "communitybot/internal/guild/store/postgres"
	"communitybot/internal/health"
	"communitybot/internal/platform/config"
	"communitybot/internal/platform/logger"
	"communitybot/internal/platform/migrations"
	platformredis "communitybot/internal/platform/redis"
	"communitybot/internal/records"
	recordsmemory "communitybot/internal/records/store/memory"
	recordspostgres "communitybot/internal/records/store/postgres"
)

const shutdownTimeout = 10 * time.Second

// loadConfig resolves the environment and checks only the variables the
// calling command needs.
func loadConfig(required ...string) (*config.Config, error) {
	cfg, err := config.Load(os.LookupEnv)
	if err != nil {
		return nil, err
	}
	if err := cfg.Require(required...); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	return logger.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
}

// initSentry is a no-op without a DSN.
func initSentry(cfg *config.Config) error {
	if cfg.Sentry.DSN == "" {
		return nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.Sentry.DSN,
		Environment:      cfg.Sentry.Environment,
		Release:          "communitybot@" + version,
		AttachStacktrace: true,
	})
	if err != nil {
		return fmt.Errorf("init sentry: %w", err)
	}
	return nil
}

func openStorage(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	return migrations.Open(ctx, cfg.Storage.URI, cfg.Storage.MaxOpenConns, cfg.Storage.MaxIdleConns)
}

// newCache connects the shared cache. Without CACHE_URL it runs degraded and
// every read is a miss.
func newCache(ctx context.Context, cfg *config.Config, log *slog.Logger, m *cache.Metrics) (*cache.Cache, func(), error) {
	opts := []cache.Option{
		cache.WithLogger(log),
		cache.WithOperationTimeout(cfg.Redis.OperationTimeout),
		cache.WithReconnect(cfg.Redis.ReconnectBackoff, cfg.Redis.MaxReconnectAttempts),
	}
	if m != nil {
		opts = append(opts, cache.WithMetrics(m))
	}

	rc, err := platformredis.New(cfg.Redis)
	if err != nil {
		return nil, nil, err
	}
	if rc == nil {
		c := cache.New(nil, opts...)
		c.Connect(ctx)
		return c, c.Close, nil
	}
	c := cache.New(cache.NewRedisBackend(rc.Client), opts...)
	c.Connect(ctx)
	return c, func() {
		c.Close()
		_ = rc.Close()
	}, nil
}

// stores groups the persistence the bot owns. db is nil in memory mode.
type stores struct {
	db      *sql.DB
	guilds  guildports.Repository
	audit   audit.Store
	records records.Store
}

func openStores(ctx context.Context, cfg *config.Config, memory bool) (*stores, error) {
	if memory {
		return &stores{
			guilds:  guildmemory.New(),
			audit:   auditmemory.NewInMemoryStore(),
			records: recordsmemory.New(),
		}, nil
	}
	db, err := openStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &stores{
		db:      db,
		guilds:  guildpostgres.New(db),
		audit:   auditpostgres.New(db),
		records: recordspostgres.New(db),
	}, nil
}

func (s *stores) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// newAuditService builds the audit service with the Kafka mirror when brokers
// are configured. Closing the service closes the sink.
func newAuditService(cfg *config.Config, store audit.Store, log *slog.Logger, m *audit.Metrics, async bool) (*audit.Service, error) {
	opts := []audit.Option{audit.WithLogger(log)}
	if m != nil {
		opts = append(opts, audit.WithMetrics(m))
	}
	if async {
		opts = append(opts, audit.WithAsyncBuffer(cfg.Audit.BufferSize))
	}
	if len(cfg.Audit.KafkaBrokers) > 0 {
		sink, err := kafka.New(cfg.Audit.KafkaBrokers, cfg.Audit.KafkaTopic)
		if err != nil {
			return nil, err
		}
		opts = append(opts, audit.WithSinks(sink))
	}
	return audit.New(store, opts...)
}

func newBackend(cfg *config.Config, c *cache.Cache, log *slog.Logger, m *backend.Metrics) (*backend.Client, error) {
	opts := []backend.Option{
		backend.WithLogger(log),
		backend.WithRateLimit(cfg.API.RequestsPerSecond, cfg.API.Burst),
		backend.WithTimeout(cfg.API.Timeout, cfg.API.HealthTimeout),
	}
	if m != nil {
		opts = append(opts, backend.WithMetrics(m))
	}
	return backend.New(cfg.API.BaseURL, cfg.API.Key, c, opts...)
}

// healthComponents lists the probes. Storage and backend gate readiness; the
// cache only degrades performance.
func healthComponents(db *sql.DB, api *backend.Client, c *cache.Cache) []health.Component {
	components := []health.Component{
		{Name: "backend", Probe: api.Ping, Required: true},
		{Name: "cache", Probe: c.Ping},
	}
	if db != nil {
		components = append([]health.Component{{Name: "storage", Probe: db.PingContext, Required: true}}, components...)
	}
	return components
}

func errUnhealthy(report health.Report) error {
	var failed []string
	for _, st := range report.Components {
		if st.Required && !st.Healthy {
			failed = append(failed, st.Name)
		}
	}
	return fmt.Errorf("unhealthy components: %s", strings.Join(failed, ", "))
}
