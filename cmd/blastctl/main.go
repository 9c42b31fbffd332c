// Command blastctl administers a blastdesk database from the shell.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/pscheid92/blastdesk/internal/adapter/postgres"
	"github.com/pscheid92/blastdesk/internal/platform/config"
	"github.com/pscheid92/blastdesk/internal/platform/logging"
)

var (
	logLevel string
	timeout  time.Duration
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "blastctl",
		Short: "Administer blastdesk",
		Long: `blastctl runs maintenance tasks against the blastdesk database.

Connection settings come from DATABASE_URL (a .env file in the working
directory is read when present).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.InitLogger(logLevel, "text")
		},
	}

	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Minute, "Overall command timeout")

	root.AddCommand(
		newMigrateCmd(),
		newAdminCmd(),
		newParticipantsCmd(),
		newTemplatesCmd(),
		newVersionCmd(),
	)
	return root
}

// withPool connects to the database for the duration of fn.
func withPool(ctx context.Context, fn func(ctx context.Context, pool *pgxpool.Pool) error) error {
	cfg, err := config.LoadDatabase()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	pool, err := postgres.Connect(ctx, cfg.DatabaseURL, nil)
	if err != nil {
		return err
	}
	defer pool.Close()

	return fn(ctx, pool)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
