package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/pscheid92/blastdesk/internal/adapter/postgres"
	"github.com/pscheid92/blastdesk/internal/app"
	"github.com/pscheid92/blastdesk/internal/domain"
	"github.com/pscheid92/blastdesk/internal/ecard"
	"github.com/pscheid92/blastdesk/internal/platform/version"
)

const passwordEnv = "BLASTCTL_ADMIN_PASSWORD"

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPool(cmd.Context(), func(ctx context.Context, pool *pgxpool.Pool) error {
				if err := postgres.RunMigrationsWithLock(ctx, pool); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Migrations applied")
				return nil
			})
		},
	}
}

func newAdminCmd() *cobra.Command {
	admin := &cobra.Command{
		Use:   "admin",
		Short: "Manage administrator accounts",
	}

	var email, password string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an administrator",
		Long: fmt.Sprintf(`Create an administrator account.

The password is taken from --password or, when the flag is omitted, from
the %s environment variable.`, passwordEnv),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv(passwordEnv)
			}
			if password == "" {
				return fmt.Errorf("a password is required (--password or %s)", passwordEnv)
			}

			return withPool(cmd.Context(), func(ctx context.Context, pool *pgxpool.Pool) error {
				// only CreateAdmin is used, which needs neither a signing key nor a denylist
				auth, err := app.NewAuthService(postgres.NewAdminRepo(pool), nil, "", 0, clockwork.NewRealClock())
				if err != nil {
					return err
				}
				a, err := auth.CreateAdmin(ctx, email, password)
				if errors.Is(err, domain.ErrAdminExists) {
					return fmt.Errorf("an admin with email %q already exists", email)
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created admin %s (%s)\n", a.Email, a.ID)
				return nil
			})
		},
	}
	create.Flags().StringVar(&email, "email", "", "Admin email address")
	create.Flags().StringVar(&password, "password", "", "Admin password")
	_ = create.MarkFlagRequired("email")

	admin.AddCommand(create)
	return admin
}

func newParticipantsCmd() *cobra.Command {
	participants := &cobra.Command{
		Use:   "participants",
		Short: "Manage the participant directory",
	}

	importCmd := &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Import participants from a CSV file",
		Long: `Import participants from a CSV file with a header row.

Recognised columns are name, email, role and department. Existing
participants are matched by email and updated; unknown departments are
created.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open %s: %w", args[0], err)
			}
			defer func() { _ = f.Close() }()

			return withPool(cmd.Context(), func(ctx context.Context, pool *pgxpool.Pool) error {
				dir := app.NewDirectoryService(postgres.NewDepartmentRepo(pool), postgres.NewParticipantRepo(pool), nil)
				res, err := dir.ImportParticipants(ctx, f)
				if err != nil {
					return err
				}
				printImportResult(cmd.OutOrStdout(), res)
				return nil
			})
		},
	}

	participants.AddCommand(importCmd)
	return participants
}

func printImportResult(w io.Writer, res *domain.ImportResult) {
	fmt.Fprintf(w, "Created %d, updated %d, skipped %d\n", res.Created, res.Updated, res.Skipped)
	for _, e := range res.Errors {
		fmt.Fprintf(w, "  line %d: %s\n", e.Line, e.Message)
	}
}

func newTemplatesCmd() *cobra.Command {
	templates := &cobra.Command{
		Use:   "templates",
		Short: "Manage email templates",
	}

	importCmd := &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Create or update templates from a YAML file",
		Long: `Create or update templates from a YAML file.

Templates are matched by name. A template's ecard.backdrop is a path to an
image, relative to the YAML file.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := loadTemplateFile(args[0])
			if err != nil {
				return err
			}

			return withPool(cmd.Context(), func(ctx context.Context, pool *pgxpool.Pool) error {
				svc := app.NewTemplateService(postgres.NewTemplateRepo(pool), ecard.NewRenderer(nil), nil)
				return importTemplates(ctx, svc, file, cmd.OutOrStdout())
			})
		},
	}

	templates.AddCommand(importCmd)
	return templates
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), version.Get().String())
			return err
		},
	}
}
