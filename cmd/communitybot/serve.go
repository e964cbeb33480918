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

	"github.com/getsentry/sentry-go"
	"github.com/spf13/cobra"

	"communitybot/internal/audit"
	"communitybot/internal/backend"
	"communitybot/internal/cache"
	"communitybot/internal/commands"
	"communitybot/internal/discord"
	"communitybot/internal/dispatcher"
	guildservice "communitybot/internal/guild/service"
	"communitybot/internal/health"
	"communitybot/internal/permission"
	"communitybot/internal/platform/config"
	"communitybot/internal/platform/httpserver"
	"communitybot/internal/platform/metrics"
	"communitybot/internal/platform/scheduler"
	rlconfig "communitybot/internal/ratelimit/config"
	rlmetrics "communitybot/internal/ratelimit/metrics"
	"communitybot/internal/ratelimit/service/requestlimit"
	"communitybot/internal/ratelimit/store/bucket"
	"communitybot/internal/ratelimit/store/violation"
	"communitybot/internal/security"
)

const (
	sweepInterval   = time.Minute
	healthInterval  = 30 * time.Second
	cleanupInterval = 24 * time.Hour
)

var serveMemory bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Connect to the gateway and serve interactions",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	required := []string{config.EnvBotToken, config.EnvClientID, config.EnvAPIBaseURL, config.EnvAPIKey}
	if !serveMemory {
		required = append(required, config.EnvStorageURI)
	}
	cfg, err := loadConfig(required...)
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	if err := initSentry(cfg); err != nil {
		log.Warn("sentry disabled", "error", err)
	}
	defer sentry.Flush(2 * time.Second)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	procMetrics := metrics.New()
	procMetrics.SetBuildInfo(version)

	c, closeCache, err := newCache(ctx, cfg, log, cache.NewMetrics())
	if err != nil {
		return err
	}
	defer closeCache()

	st, err := openStores(ctx, cfg, serveMemory)
	if err != nil {
		return err
	}
	defer st.Close()

	auditSvc, err := newAuditService(cfg, st.audit, log, audit.NewMetrics(), true)
	if err != nil {
		return err
	}
	defer func() {
		if err := auditSvc.Close(); err != nil {
			log.Error("flush audit", "error", err)
		}
	}()

	guilds, err := guildservice.New(st.guilds, c,
		guildservice.WithLogger(log),
		guildservice.WithAuditPublisher(auditSvc),
	)
	if err != nil {
		return err
	}

	api, err := newBackend(cfg, c, log, backend.NewMetrics())
	if err != nil {
		return err
	}

	session, err := discord.NewSession(cfg.Discord.Token)
	if err != nil {
		return err
	}
	adapter, err := discord.New(session, cfg.Discord.ClientID, discord.WithLogger(log))
	if err != nil {
		return err
	}

	secCfg := security.DefaultConfig()
	secCfg.AlertHighWater = cfg.Security.AlertQueueHighWater
	// Source addresses only exist on interactions received over HTTP behind a
	// trusted proxy.
	secCfg.CoordinatedAttack.Enabled = cfg.Discord.PublicKey != "" && cfg.Security.TrustedProxyHeader != ""
	monitor, err := security.New(guilds,
		security.WithConfig(secCfg),
		security.WithLogger(log),
		security.WithMetrics(security.NewMetrics()),
		security.WithAuditPublisher(auditSvc),
		security.WithAlertNotifier(adapter),
	)
	if err != nil {
		return err
	}

	limitCfg := rlconfig.DefaultConfig()
	limiter, err := requestlimit.New(bucket.New(), violation.New(),
		requestlimit.WithConfig(limitCfg),
		requestlimit.WithLogger(log),
		requestlimit.WithMetrics(rlmetrics.New()),
		requestlimit.WithAuditPublisher(auditSvc),
	)
	if err != nil {
		return err
	}

	set, err := commands.New(api, guilds, monitor, st.records, commands.WithLogger(log))
	if err != nil {
		return err
	}
	registry, err := set.Registry()
	if err != nil {
		return err
	}

	evaluator, err := permission.New(guilds, registry.Policies(),
		permission.WithLogger(log),
		permission.WithMetrics(permission.NewMetrics()),
		permission.WithAuditPublisher(auditSvc),
		permission.WithRestrictionSources(limiter, monitor),
		permission.WithOwnerResolver(adapter),
	)
	if err != nil {
		return err
	}

	pipeline, err := dispatcher.New(registry, adapter, limiter, evaluator, monitor,
		dispatcher.WithLogger(log),
		dispatcher.WithMetrics(dispatcher.NewMetrics()),
		dispatcher.WithAuditPublisher(auditSvc),
	)
	if err != nil {
		return err
	}

	hm, err := health.New(healthComponents(st.db, api, c),
		health.WithLogger(log),
		health.WithMetrics(procMetrics),
		health.WithTimeout(cfg.API.HealthTimeout),
	)
	if err != nil {
		return err
	}

	routes := []httpserver.Routes{hm}
	if cfg.Discord.PublicKey != "" {
		webhook, err := discord.NewWebhook(adapter, pipeline, cfg.Discord.PublicKey, cfg.Security.TrustedProxyHeader, log)
		if err != nil {
			return err
		}
		routes = append(routes, webhook)
	}
	srv := httpserver.New(cfg.HTTP.Addr, httpserver.NewRouter(log, routes...))

	sched := scheduler.New(scheduler.WithLogger(log), scheduler.WithMetrics(procMetrics))
	tasks := []struct {
		name     string
		interval time.Duration
		fn       scheduler.TaskFunc
	}{
		{"ratelimit_compaction", limiter.CompactionInterval(), func(ctx context.Context) error {
			limiter.Compact(ctx)
			return nil
		}},
		{"violation_sweep", sweepInterval, func(ctx context.Context) error {
			limiter.Sweep(ctx)
			return nil
		}},
		{"security_sweep", sweepInterval, func(ctx context.Context) error {
			monitor.Sweep(ctx)
			return nil
		}},
		{"alert_flush", cfg.Security.AlertFlushInterval, func(ctx context.Context) error {
			monitor.FlushAlerts(ctx)
			return nil
		}},
		{"health", healthInterval, func(ctx context.Context) error {
			if report := hm.Check(ctx); !report.Healthy {
				return errUnhealthy(report)
			}
			return nil
		}},
		{"audit_cleanup", cleanupInterval, func(ctx context.Context) error {
			n, err := auditSvc.Cleanup(ctx, cfg.Audit.RetentionDays)
			if err != nil {
				return err
			}
			log.InfoContext(ctx, "audit retention applied", "deleted", n, "retention_days", cfg.Audit.RetentionDays)
			return nil
		}},
	}
	for _, t := range tasks {
		if err := sched.Add(t.name, t.interval, t.fn); err != nil {
			return err
		}
	}

	hm.Check(ctx)
	sched.Start(ctx)
	defer sched.Stop()

	gateway := discord.NewGateway(session, adapter, pipeline, log)
	if err := gateway.Open(); err != nil {
		return err
	}

	if guildID := cfg.Discord.DevGuildID; guildID != "" {
		if _, err := adapter.RegisterCommands(ctx, guildID, set.Commands()); err != nil {
			log.Warn("register development guild commands", "guild_id", guildID, "error", err)
		}
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("ops server listening", "addr", cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	log.Info("communitybot started", "version", version, "memory", serveMemory)

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-serverErr:
		runErr = fmt.Errorf("ops server: %w", err)
	}

	if err := gateway.Close(); err != nil {
		log.Warn("close gateway", "error", err)
	}
	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("ops server shutdown", "error", err)
	}
	if n := monitor.FlushAlerts(shutdownCtx); n > 0 {
		log.Info("flushed pending alerts", "count", n)
	}
	return runErr
}
