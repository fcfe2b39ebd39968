// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// Default retention windows.
const (
	defaultRegistrationAge = 7 * 24 * time.Hour
	defaultAttemptAge      = 30 * 24 * time.Hour
	defaultSessionIdle     = 30 * 24 * time.Hour
)

// sweepFunc runs one retention operation against a cutoff and reports affected rows.
type sweepFunc func(ctx context.Context, sweeper *Sweeper, cutoff time.Time) (int64, error)

// newSweepCmd builds a leaf command that computes cutoff = now - flag and runs sweep.
func newSweepCmd(backend Backend, use, short, flag string, window time.Duration, verb string, sweep sweepFunc) *cobra.Command {
	var age time.Duration

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if flag != "" && age <= 0 {
				return fmt.Errorf("--%s must be positive, got %s", flag, age)
			}

			sweeper, cleanup, err := backend.Sweeper(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			cutoff := sweeper.Clock.Now().Add(-age)
			affected, err := sweep(cmd.Context(), sweeper, cutoff)
			if err != nil {
				return err
			}

			cmd.Printf("%s %d\n", verb, affected)
			return nil
		},
	}

	if flag != "" {
		cmd.Flags().DurationVar(&age, flag, window, short)
	}
	return cmd
}

// NewRegistrationsCmd creates the registrations subcommand tree.
func NewRegistrationsCmd(backend Backend) *cobra.Command {
	cmd := &cobra.Command{Use: "registrations", Short: "Manage signup records"}

	cmd.AddCommand(newSweepCmd(backend,
		"expire", "Mark pending registrations older than --older-than as expired",
		"older-than", defaultRegistrationAge, "expired",
		func(ctx context.Context, sweeper *Sweeper, cutoff time.Time) (int64, error) {
			return sweeper.Registrations.ExpirePending(ctx, cutoff)
		},
	))
	return cmd
}

// NewAttemptsCmd creates the failed login audit subcommand tree.
func NewAttemptsCmd(backend Backend) *cobra.Command {
	cmd := &cobra.Command{Use: "attempts", Short: "Manage the failed login audit"}

	cmd.AddCommand(newSweepCmd(backend,
		"prune", "Delete failed login attempts older than --older-than",
		"older-than", defaultAttemptAge, "deleted",
		func(ctx context.Context, sweeper *Sweeper, cutoff time.Time) (int64, error) {
			return sweeper.Attempts.DeleteBefore(ctx, cutoff)
		},
	))
	return cmd
}

// NewSessionsCmd creates the sessions subcommand tree.
func NewSessionsCmd(backend Backend) *cobra.Command {
	cmd := &cobra.Command{Use: "sessions", Short: "Manage login sessions"}

	cmd.AddCommand(newSweepCmd(backend,
		"close-stale", "Close sessions idle for longer than --idle-for",
		"idle-for", defaultSessionIdle, "closed",
		func(ctx context.Context, sweeper *Sweeper, cutoff time.Time) (int64, error) {
			return sweeper.Sessions.CloseIdle(ctx, cutoff)
		},
	))
	return cmd
}

// NewTokensCmd creates the reset token subcommand tree.
func NewTokensCmd(backend Backend) *cobra.Command {
	cmd := &cobra.Command{Use: "tokens", Short: "Manage password reset tokens"}

	cmd.AddCommand(newSweepCmd(backend,
		"prune", "Delete expired password reset tokens",
		"", 0, "deleted",
		func(ctx context.Context, sweeper *Sweeper, cutoff time.Time) (int64, error) {
			return sweeper.ResetTokens.DeleteExpired(ctx, cutoff)
		},
	))
	return cmd
}
