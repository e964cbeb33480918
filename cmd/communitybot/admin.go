package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"communitybot/internal/audit"
	"communitybot/internal/audit/sink/kafka"
	auditpostgres "communitybot/internal/audit/store/postgres"
	"communitybot/internal/commands"
	"communitybot/internal/discord"
	guildservice "communitybot/internal/guild/service"
	guildpostgres "communitybot/internal/guild/store/postgres"
	"communitybot/internal/health"
	"communitybot/internal/platform/config"
	"communitybot/internal/platform/migrations"
	"communitybot/pkg/requestcontext"
)

// cliActor is recorded as the acting user for changes made from the CLI.
const cliActor = "cli"

var cleanupDays int

var (
	registerCmd = &cobra.Command{
		Use:   "register",
		Short: "Register the slash commands globally",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return registerCommands(cmd, "")
		},
	}
	registerGuildCmd = &cobra.Command{
		Use:   "register-guild <guild-id>",
		Short: "Register the slash commands in one guild",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return registerCommands(cmd, args[0])
		},
	}
	clearCmd = &cobra.Command{
		Use:   "clear",
		Short: "Remove every global slash command",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return clearCommands(cmd, "")
		},
	}
	clearGuildCmd = &cobra.Command{
		Use:   "clear-guild <guild-id>",
		Short: "Remove every slash command registered in one guild",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return clearCommands(cmd, args[0])
		},
	}
	listCmd = &cobra.Command{
		Use:   "list [guild-id]",
		Short: "List registered slash commands, globally or in one guild",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runList,
	}
	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema and the audit topic",
		Args:  cobra.NoArgs,
		RunE:  runMigrate,
	}
	cleanupCmd = &cobra.Command{
		Use:   "cleanup",
		Short: "Delete audit entries older than the retention period",
		Args:  cobra.NoArgs,
		RunE:  runCleanup,
	}
	summaryCmd = &cobra.Command{
		Use:   "data:summary",
		Short: "Print row counts and the audit log summary",
		Args:  cobra.NoArgs,
		RunE:  runSummary,
	}
	healthCmd = &cobra.Command{
		Use:   "health",
		Short: "Probe storage, cache and backend once",
		Args:  cobra.NoArgs,
		RunE:  runHealth,
	}
	reindexCmd = &cobra.Command{
		Use:   "indexes:rebuild",
		Short: "Rebuild every index the bot owns",
		Args:  cobra.NoArgs,
		RunE:  runReindex,
	}
	liftLockdownCmd = &cobra.Command{
		Use:   "lift-lockdown <guild-id>",
		Short: "End a guild lockdown before it expires",
		Args:  cobra.ExactArgs(1),
		RunE:  runLiftLockdown,
	}
)

func newAdminAdapter() (*discord.Adapter, error) {
	cfg, err := loadConfig(config.EnvBotToken, config.EnvClientID)
	if err != nil {
		return nil, err
	}
	session, err := discord.NewSession(cfg.Discord.Token)
	if err != nil {
		return nil, err
	}
	return discord.New(session, cfg.Discord.ClientID, discord.WithLogger(newLogger(cfg)))
}

func scopeName(guildID string) string {
	if guildID == "" {
		return "globally"
	}
	return "in guild " + guildID
}

func registerCommands(cmd *cobra.Command, guildID string) error {
	adapter, err := newAdminAdapter()
	if err != nil {
		return err
	}
	registered, err := adapter.RegisterCommands(cmd.Context(), guildID, commands.Definitions())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "registered %d commands %s\n", len(registered), scopeName(guildID))
	return nil
}

func clearCommands(cmd *cobra.Command, guildID string) error {
	adapter, err := newAdminAdapter()
	if err != nil {
		return err
	}
	if err := adapter.ClearCommands(cmd.Context(), guildID); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "cleared commands %s\n", scopeName(guildID))
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	var guildID string
	if len(args) == 1 {
		guildID = args[0]
	}
	adapter, err := newAdminAdapter()
	if err != nil {
		return err
	}
	registered, err := adapter.ListCommands(cmd.Context(), guildID)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%d commands registered %s\n", len(registered), scopeName(guildID))
	for _, c := range registered {
		fmt.Fprintf(out, "  /%-20s %s\n", c.Name, c.Description)
	}
	return nil
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(config.EnvStorageURI)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	db, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := migrations.Apply(ctx, db); err != nil {
		return err
	}
	v, err := migrations.Version(ctx, db)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d\n", v)

	if len(cfg.Audit.KafkaBrokers) > 0 {
		if err := kafka.EnsureTopic(ctx, cfg.Audit.KafkaBrokers, cfg.Audit.KafkaTopic, 3, 1); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "audit topic %s ready\n", cfg.Audit.KafkaTopic)
	}
	return nil
}

func runCleanup(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(config.EnvStorageURI)
	if err != nil {
		return err
	}
	days := cleanupDays
	if days == 0 {
		days = cfg.Audit.RetentionDays
	}
	if days < 0 {
		return fmt.Errorf("--days must be positive, got %d", days)
	}

	ctx := cmd.Context()
	db, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	svc, err := audit.New(auditpostgres.New(db), audit.WithLogger(newLogger(cfg)))
	if err != nil {
		return err
	}
	n, err := svc.Cleanup(ctx, days)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "deleted %d audit entries older than %d days\n", n, days)
	return nil
}

func runSummary(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(config.EnvStorageURI)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	db, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	counts, err := migrations.TableCounts(ctx, db)
	if err != nil {
		return err
	}
	summary, err := auditpostgres.New(db).Summary(ctx)
	if err != nil {
		return err
	}
	printSummary(cmd.OutOrStdout(), counts, summary)
	return nil
}

func printSummary(out io.Writer, counts map[string]int64, summary audit.Summary) {
	fmt.Fprintln(out, "tables:")
	for _, table := range migrations.Tables {
		fmt.Fprintf(out, "  %-24s %d\n", table, counts[table])
	}

	fmt.Fprintf(out, "audit entries: %d\n", summary.Total)
	if summary.Total == 0 {
		return
	}
	fmt.Fprintf(out, "  oldest %s, newest %s\n", summary.Oldest.Format(time.RFC3339), summary.Newest.Format(time.RFC3339))
	types := make([]string, 0, len(summary.ByType))
	for t := range summary.ByType {
		types = append(types, string(t))
	}
	sort.Strings(types)
	for _, t := range types {
		fmt.Fprintf(out, "  %-24s %d\n", t, summary.ByType[audit.EventType(t)])
	}
}

func runHealth(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(config.EnvStorageURI, config.EnvAPIBaseURL, config.EnvAPIKey)
	if err != nil {
		return err
	}
	log := newLogger(cfg)
	ctx := cmd.Context()

	c, closeCache, err := newCache(ctx, cfg, log, nil)
	if err != nil {
		return err
	}
	defer closeCache()

	// A storage outage is a health result, not a startup failure.
	var components []health.Component
	db, storageErr := openStorage(ctx, cfg)
	if storageErr != nil {
		components = append(components, health.Component{Name: "storage", Required: true, Probe: func(context.Context) error {
			return storageErr
		}})
	} else {
		defer db.Close()
	}

	api, err := newBackend(cfg, c, log, nil)
	if err != nil {
		return err
	}
	hm, err := health.New(append(components, healthComponents(db, api, c)...), health.WithTimeout(cfg.API.HealthTimeout))
	if err != nil {
		return err
	}

	report := hm.Check(ctx)
	out := cmd.OutOrStdout()
	for _, st := range report.Components {
		state := "ok"
		if !st.Healthy {
			state = "FAIL " + st.Error
		}
		fmt.Fprintf(out, "%-8s %-5s %s\n", st.Name, st.Latency.Round(time.Millisecond), state)
	}
	if !report.Healthy {
		return errUnhealthy(report)
	}
	fmt.Fprintln(out, "healthy")
	return nil
}

func runReindex(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(config.EnvStorageURI)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	db, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := migrations.RebuildIndexes(ctx, db); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "rebuilt indexes on %d tables\n", len(migrations.Tables))
	return nil
}

// runLiftLockdown goes through the guild service so the cached guild state the
// running bot reads is invalidated too.
func runLiftLockdown(cmd *cobra.Command, args []string) error {
	guildID := args[0]
	cfg, err := loadConfig(config.EnvStorageURI)
	if err != nil {
		return err
	}
	log := newLogger(cfg)
	ctx := requestcontext.WithUserID(cmd.Context(), cliActor)

	db, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	c, closeCache, err := newCache(ctx, cfg, log, nil)
	if err != nil {
		return err
	}
	defer closeCache()

	auditSvc, err := newAuditService(cfg, auditpostgres.New(db), log, nil, false)
	if err != nil {
		return err
	}
	defer auditSvc.Close()

	guilds, err := guildservice.New(guildpostgres.New(db), c,
		guildservice.WithLogger(log),
		guildservice.WithAuditPublisher(auditSvc),
	)
	if err != nil {
		return err
	}
	if err := guilds.LiftLockdown(ctx, guildID, cliActor); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "lockdown lifted in guild %s\n", guildID)
	return nil
}
