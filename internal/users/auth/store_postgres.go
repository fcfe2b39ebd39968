// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// PostgreSQL repositories for accounts and registration records.
//
// # Error Mapping
//
// Storage-specific errors (like pgx.ErrNoRows) are mapped to domain-friendly
// [apperr.AppError] types to avoid leaking storage implementation details.

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

const accountColumns = `id, email, handle, passwordhash, phone, emailverified, createdat, updatedat`

// # Account Repository

// PostgresAccountRepository implements [AccountRepository] using pgx.
type PostgresAccountRepository struct {
	db postgres.DB
}

// NewAccountRepository creates a new PostgreSQL implementation of the AccountRepository.
func NewAccountRepository(db postgres.DB) *PostgresAccountRepository {
	return &PostgresAccountRepository{db: db}
}

func scanAccount(row pgx.Row) (*Account, error) {
	account := &Account{}
	err := row.Scan(
		&account.ID,
		&account.Email,
		&account.Handle,
		&account.PasswordHash,
		&account.Phone,
		&account.EmailVerified,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	return account, err
}

// findOne runs a single-row account query and maps a missing row to NotFound.
func (repository *PostgresAccountRepository) findOne(context context.Context, action, query string, argument any) (*Account, error) {
	account, err := scanAccount(repository.db.QueryRow(context, query, argument))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Account")
		}
		return nil, fmt.Errorf("postgres_account_repo_%s_failed: %w", action, err)
	}
	return account, nil
}

// FindByID implements [AccountRepository].
func (repository *PostgresAccountRepository) FindByID(context context.Context, id string) (*Account, error) {
	const query = `SELECT ` + accountColumns + ` FROM users.account WHERE id = $1`
	return repository.findOne(context, "find_by_id", query, id)
}

// FindByEmail implements [AccountRepository].
func (repository *PostgresAccountRepository) FindByEmail(context context.Context, email string) (*Account, error) {
	const query = `SELECT ` + accountColumns + ` FROM users.account WHERE email = $1`
	return repository.findOne(context, "find_by_email", query, email)
}

// FindByHandle implements [AccountRepository].
func (repository *PostgresAccountRepository) FindByHandle(context context.Context, handle string) (*Account, error) {
	const query = `SELECT ` + accountColumns + ` FROM users.account WHERE LOWER(handle) = LOWER($1)`
	return repository.findOne(context, "find_by_handle", query, handle)
}

/*
Create persists a new account and its registration record in one transaction.

Parameters:
  - context: context.Context
  - account: *Account (Entity to persist)
  - registration: *RegistrationInfo (Signup audit record)

Returns:
  - error: Conflict (unique violation, constraint name preserved) or database errors
*/
func (repository *PostgresAccountRepository) Create(context context.Context, account *Account, registration *RegistrationInfo) error {
	const insertAccount = `
		INSERT INTO users.account (
			id, email, handle, passwordhash, phone, emailverified, createdat, updatedat
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	const insertRegistration = `
		INSERT INTO users.registrationinfo (
			accountid, ipaddress, useragent, source, status, registeredat
		) VALUES ($1, $2, $3, $4, $5, $6)`

	now := time.Now().UTC()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	if account.UpdatedAt.IsZero() {
		account.UpdatedAt = account.CreatedAt
	}
	if registration.RegisteredAt.IsZero() {
		registration.RegisteredAt = account.CreatedAt
	}

	return postgres.WithTx(context, repository.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(context, insertAccount,
			account.ID,
			account.Email,
			account.Handle,
			account.PasswordHash,
			account.Phone,
			account.EmailVerified,
			account.CreatedAt,
			account.UpdatedAt,
		); err != nil {
			return dberr.Wrap(err, "postgres_account_repo_create")
		}

		if _, err := tx.Exec(context, insertRegistration,
			account.ID,
			registration.IPAddress,
			registration.UserAgent,
			registration.Source,
			registration.Status,
			registration.RegisteredAt,
		); err != nil {
			return dberr.Wrap(err, "postgres_registration_repo_create")
		}

		registration.AccountID = account.ID
		return nil
	})
}

// UpdateProfile implements [AccountRepository].
func (repository *PostgresAccountRepository) UpdateProfile(context context.Context, account *Account) error {
	const query = `
		UPDATE users.account
		SET handle = $2, phone = $3, updatedat = $4
		WHERE id = $1`

	account.UpdatedAt = time.Now().UTC()

	tag, err := repository.db.Exec(context, query, account.ID, account.Handle, account.Phone, account.UpdatedAt)
	if err != nil {
		return dberr.Wrap(err, "postgres_account_repo_update_profile")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("Account")
	}
	return nil
}

// UpdatePassword implements [AccountRepository].
func (repository *PostgresAccountRepository) UpdatePassword(context context.Context, accountID, newHash string) error {
	const query = `UPDATE users.account SET passwordhash = $2, updatedat = NOW() WHERE id = $1`

	tag, err := repository.db.Exec(context, query, accountID, newHash)
	if err != nil {
		return fmt.Errorf("postgres_account_repo_update_password_failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("Account")
	}
	return nil
}

// MarkVerified implements [AccountRepository].
func (repository *PostgresAccountRepository) MarkVerified(context context.Context, accountID string, at time.Time) error {
	const verifyAccount = `UPDATE users.account SET emailverified = TRUE, updatedat = $2 WHERE id = $1`

	const verifyRegistration = `
		UPDATE users.registrationinfo
		SET status = 'verified', verifiedat = $2
		WHERE accountid = $1`

	return postgres.WithTx(context, repository.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(context, verifyAccount, accountID, at)
		if err != nil {
			return fmt.Errorf("postgres_account_repo_mark_verified_failed: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return apperr.NotFound("Account")
		}

		// Accounts created before registration tracking have no record; that is fine.
		if _, err := tx.Exec(context, verifyRegistration, accountID, at); err != nil {
			return fmt.Errorf("postgres_registration_repo_mark_verified_failed: %w", err)
		}
		return nil
	})
}

// # Registration Repository

// PostgresRegistrationRepository implements [RegistrationRepository] using pgx.
type PostgresRegistrationRepository struct {
	db postgres.DB
}

// NewRegistrationRepository creates a new PostgreSQL implementation of the RegistrationRepository.
func NewRegistrationRepository(db postgres.DB) *PostgresRegistrationRepository {
	return &PostgresRegistrationRepository{db: db}
}

// FindByAccountID implements [RegistrationRepository].
func (repository *PostgresRegistrationRepository) FindByAccountID(context context.Context, accountID string) (*RegistrationInfo, error) {
	const query = `
		SELECT accountid, ipaddress, useragent, source, status,
		       verificationattempts, lastverificationattempt, registeredat, verifiedat
		FROM users.registrationinfo
		WHERE accountid = $1`

	info := &RegistrationInfo{}
	err := repository.db.QueryRow(context, query, accountID).Scan(
		&info.AccountID,
		&info.IPAddress,
		&info.UserAgent,
		&info.Source,
		&info.Status,
		&info.VerificationAttempts,
		&info.LastVerificationAttempt,
		&info.RegisteredAt,
		&info.VerifiedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Registration")
		}
		return nil, fmt.Errorf("postgres_registration_repo_find_failed: %w", err)
	}
	return info, nil
}

// RecordVerificationAttempt implements [RegistrationRepository].
func (repository *PostgresRegistrationRepository) RecordVerificationAttempt(context context.Context, accountID string, at time.Time) error {
	const query = `
		UPDATE users.registrationinfo
		SET verificationattempts = verificationattempts + 1, lastverificationattempt = $2
		WHERE accountid = $1`

	tag, err := repository.db.Exec(context, query, accountID, at)
	if err != nil {
		return fmt.Errorf("postgres_registration_repo_record_attempt_failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("Registration")
	}
	return nil
}

// ExpirePending implements [RegistrationRepository].
func (repository *PostgresRegistrationRepository) ExpirePending(context context.Context, registeredBefore time.Time) (int64, error) {
	const query = `
		UPDATE users.registrationinfo
		SET status = 'expired'
		WHERE status = 'pending' AND registeredat < $1`

	tag, err := repository.db.Exec(context, query, registeredBefore)
	if err != nil {
		return 0, fmt.Errorf("postgres_registration_repo_expire_failed: %w", err)
	}
	return tag.RowsAffected(), nil
}
