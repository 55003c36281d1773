package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"flowtrack/internal/auth"
	"flowtrack/internal/cli"
)

var (
	cfgFile string
	version = "dev"
	rootCmd = &cobra.Command{
		Use:   "flowctl",
		Short: "Operator tool for flowtrack",
		Long: `flowctl prints the weekly and monthly cashflow series for an owner,
imports transactions, runs database migrations and issues development tokens.

It reads the same environment variables as the server; flags override them.`,
		SilenceUsage:      true,
		PersistentPreRunE: initConfig,
	}
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "env file to load (default: .env when present)")
	flags.String("log-level", "warn", "log level (debug, info, warn, error)")
	flags.String("backend", "memory", "data backend (memory, sqlite, sheets)")
	flags.String("db", "./data/flowtrack.db", "SQLite database path")
	flags.String("seed", "", "JSON seed file for the memory backend")
	flags.String("timezone", "UTC", "IANA zone for dates without an offset")
	flags.String("owner", auth.LocalOwner, "owner whose transactions are read or written")

	// Keys match the environment variables the server reads.
	_ = viper.BindPFlag("log_level", flags.Lookup("log-level"))
	_ = viper.BindPFlag("data_backend", flags.Lookup("backend"))
	_ = viper.BindPFlag("sqlite_db_path", flags.Lookup("db"))
	_ = viper.BindPFlag("memory_seed_file", flags.Lookup("seed"))
	_ = viper.BindPFlag("timezone", flags.Lookup("timezone"))
	_ = viper.BindPFlag("flowctl_owner", flags.Lookup("owner"))

	rootCmd.AddCommand(weeklyCmd())
	rootCmd.AddCommand(monthlyCmd())
	rootCmd.AddCommand(summaryCmd())
	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(versionCmd())
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initConfig(_ *cobra.Command, _ []string) error {
	if cfgFile != "" {
		if _, err := os.Stat(cfgFile); err != nil {
			return fmt.Errorf("config file: %w", err)
		}
		cli.LoadEnvFile(cfgFile)
	} else {
		cli.LoadEnvFile()
	}

	viper.AutomaticEnv()
	cli.SetupLogger(viper.GetString("log_level"))
	return nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "flowctl %s\n", version)
		},
	}
}

var errNoTransactions = errors.New("no transactions found")

func logSkipped(ctx context.Context, owner string, skipped int) {
	if skipped > 0 {
		slog.WarnContext(ctx, "Undated transactions excluded from aggregates",
			"owner", owner, "skipped", skipped)
	}
}
