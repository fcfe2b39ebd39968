// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/AlgorithmxTech/DIY-Internal-Backend/internal/platform/apperr"
	"github.com/AlgorithmxTech/DIY-Internal-Backend/internal/platform/dberr"
	"github.com/AlgorithmxTech/DIY-Internal-Backend/internal/platform/postgres"
)

// # Reset Token Repository

// PostgresResetTokenRepository implements [ResetTokenRepository] using pgx.
type PostgresResetTokenRepository struct {
	db postgres.DB
}

// NewResetTokenRepository creates a new PostgreSQL implementation of the ResetTokenRepository.
func NewResetTokenRepository(db postgres.DB) *PostgresResetTokenRepository {
	return &PostgresResetTokenRepository{db: db}
}

/*
Replace swaps the account's reset token for a new one.

Description: Purge and insert share a transaction. A digest collision makes
the insert fail with a unique violation, which callers may retry with a
freshly generated token.

Parameters:
  - context: context.Context
  - token: *PasswordResetToken (Only the digest is persisted)

Returns:
  - error: Conflict on digest collision, or database errors
*/
func (repository *PostgresResetTokenRepository) Replace(context context.Context, token *PasswordResetToken) error {
	const purge = `DELETE FROM users.passwordresettoken WHERE accountid = $1`

	const insert = `
		INSERT INTO users.passwordresettoken (id, accountid, tokenhash, createdat, expiresat)
		VALUES ($1, $2, $3, $4, $5)`

	return postgres.WithTx(context, repository.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(context, purge, token.AccountID); err != nil {
			return fmt.Errorf("postgres_reset_repo_purge_failed: %w", err)
		}

		if _, err := tx.Exec(context, insert,
			token.ID,
			token.AccountID,
			token.TokenHash,
			token.CreatedAt,
			token.ExpiresAt,
		); err != nil {
			return dberr.Wrap(err, "postgres_reset_repo_insert")
		}
		return nil
	})
}

// FindByHash implements [ResetTokenRepository].
func (repository *PostgresResetTokenRepository) FindByHash(context context.Context, tokenHash string) (*PasswordResetToken, error) {
	const query = `
		SELECT id, accountid, tokenhash, createdat, expiresat
		FROM users.passwordresettoken
		WHERE tokenhash = $1`

	token := &PasswordResetToken{}
	err := repository.db.QueryRow(context, query, tokenHash).Scan(
		&token.ID,
		&token.AccountID,
		&token.TokenHash,
		&token.CreatedAt,
		&token.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Reset token")
		}
		return nil, fmt.Errorf("postgres_reset_repo_find_failed: %w", err)
	}
	return token, nil
}

/*
Redeem claims a live token and sets the new password in one transaction.

Description: The token row is deleted first and only when it is still live,
so a token superseded by a newer request, or redeemed concurrently, matches
nothing and the password stays untouched.

Parameters:
  - context: context.Context
  - tokenHash: string
  - now: time.Time (Tokens expiring at or before now do not match)
  - newPasswordHash: string

Returns:
  - string: Account the token belonged to
  - error: NotFound when no live token matches, or database errors
*/
func (repository *PostgresResetTokenRepository) Redeem(context context.Context, tokenHash string, now time.Time, newPasswordHash string) (string, error) {
	const claim = `
		DELETE FROM users.passwordresettoken
		WHERE tokenhash = $1 AND expiresat > $2
		RETURNING accountid`

	const updatePassword = `UPDATE users.account SET passwordhash = $2, updatedat = NOW() WHERE id = $1`
	const purge = `DELETE FROM users.passwordresettoken WHERE accountid = $1`

	var accountID string
	err := postgres.WithTx(context, repository.db, func(tx pgx.Tx) error {
		if err := tx.QueryRow(context, claim, tokenHash, now).Scan(&accountID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperr.NotFound("Reset token")
			}
			return fmt.Errorf("postgres_reset_repo_claim_failed: %w", err)
		}

		tag, err := tx.Exec(context, updatePassword, accountID, newPasswordHash)
		if err != nil {
			return fmt.Errorf("postgres_reset_repo_update_password_failed: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return apperr.NotFound("Account")
		}

		if _, err := tx.Exec(context, purge, accountID); err != nil {
			return fmt.Errorf("postgres_reset_repo_purge_failed: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return accountID, nil
}

// DeleteExpired implements [ResetTokenRepository].
func (repository *PostgresResetTokenRepository) DeleteExpired(context context.Context, now time.Time) (int64, error) {
	const query = `DELETE FROM users.passwordresettoken WHERE expiresat <= $1`

	tag, err := repository.db.Exec(context, query, now)
	if err != nil {
		return 0, fmt.Errorf("postgres_reset_repo_delete_expired_failed: %w", err)
	}
	return tag.RowsAffected(), nil
}
