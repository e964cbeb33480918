// Command communitybot runs the community bot and its administrative tasks.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var rootCmd = &cobra.Command{
	Use:           "communitybot",
	Short:         "Chat platform bot for community tasks, allowlists and moderation",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Version = version

	serveCmd.Flags().BoolVar(&serveMemory, "memory", false, "keep guild state, records and audit entries in memory instead of Postgres")
	cleanupCmd.Flags().IntVar(&cleanupDays, "days", 0, "retention in days (defaults to AUDIT_RETENTION_DAYS)")

	rootCmd.AddCommand(
		serveCmd,
		registerCmd,
		registerGuildCmd,
		clearCmd,
		clearGuildCmd,
		listCmd,
		migrateCmd,
		cleanupCmd,
		summaryCmd,
		healthCmd,
		reindexCmd,
		liftLockdownCmd,
	)
}
