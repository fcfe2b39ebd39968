// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/AlgorithmxTech/DIY-Internal-Backend/internal/platform/config"
	"github.com/AlgorithmxTech/DIY-Internal-Backend/internal/platform/migration"
	pgstore "github.com/AlgorithmxTech/DIY-Internal-Backend/internal/platform/postgres"
	"github.com/AlgorithmxTech/DIY-Internal-Backend/internal/users/auth"
	"github.com/AlgorithmxTech/DIY-Internal-Backend/pkg/clock"
)

// # Backend

// Sweeper groups the retention operations exposed by the auth repositories.
type Sweeper struct {
	Registrations interface {
		ExpirePending(ctx context.Context, registeredBefore time.Time) (int64, error)
	}
	Attempts interface {
		DeleteBefore(ctx context.Context, before time.Time) (int64, error)
	}
	Sessions interface {
		CloseIdle(ctx context.Context, idleSince time.Time) (int64, error)
	}
	ResetTokens interface {
		DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	}
	Clock clock.Clock
}

// Backend opens the stores a command needs. Tests swap in memory fakes.
type Backend interface {
	// Sweeper connects to the database and returns a cleanup func.
	Sweeper(ctx context.Context) (*Sweeper, func(), error)

	// MigrateUp applies all pending migrations.
	MigrateUp(ctx context.Context) error

	// MigrationVersion reports the applied schema version.
	MigrationVersion(ctx context.Context) (uint, bool, error)
}

// postgresBackend reads DATABASE_URL and MIGRATION_PATH from the environment.
type postgresBackend struct{}

func (postgresBackend) logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

func (backend postgresBackend) Sweeper(ctx context.Context) (*Sweeper, func(), error) {
	cfg, err := config.LoadDatabase()
	if err != nil {
		return nil, nil, err
	}

	pool, err := pgstore.NewPool(ctx, cfg.DatabaseURL, backend.logger())
	if err != nil {
		return nil, nil, err
	}

	return &Sweeper{
		Registrations: auth.NewRegistrationRepository(pool),
		Attempts:      auth.NewFailedLoginRepository(pool),
		Sessions:      auth.NewSessionRepository(pool),
		ResetTokens:   auth.NewResetTokenRepository(pool),
		Clock:         clock.System(),
	}, pool.Close, nil
}

func (backend postgresBackend) MigrateUp(_ context.Context) error {
	cfg, err := config.LoadDatabase()
	if err != nil {
		return err
	}
	return migration.RunUp(cfg.DatabaseURL, cfg.MigrationPath, backend.logger())
}

func (postgresBackend) MigrationVersion(_ context.Context) (uint, bool, error) {
	cfg, err := config.LoadDatabase()
	if err != nil {
		return 0, false, err
	}
	return migration.Version(cfg.DatabaseURL, cfg.MigrationPath)
}

// # Commands

// NewRootCmd creates the root command for the accountsctl CLI.
func NewRootCmd(backend Backend) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accountsctl",
		Short: "Operator tool for the accounts service",
		Long: `accountsctl applies schema migrations and runs the retention sweeps
for registrations, failed login attempts, sessions and reset tokens.

Connection settings come from DATABASE_URL and MIGRATION_PATH.`,
		SilenceUsage: true,
	}

	cmd.AddCommand(NewMigrateCmd(backend))
	cmd.AddCommand(NewRegistrationsCmd(backend))
	cmd.AddCommand(NewAttemptsCmd(backend))
	cmd.AddCommand(NewSessionsCmd(backend))
	cmd.AddCommand(NewTokensCmd(backend))

	return cmd
}

// NewMigrateCmd creates the migrate subcommand tree.
func NewMigrateCmd(backend Backend) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.Println("Running migrations...")
			if err := backend.MigrateUp(cmd.Context()); err != nil {
				return err
			}
			cmd.Println("Migrations completed successfully")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the applied schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			version, dirty, err := backend.MigrationVersion(cmd.Context())
			if err != nil {
				return err
			}
			cmd.Printf("version: %d\ndirty: %t\n", version, dirty)
			return nil
		},
	})

	return cmd
}
