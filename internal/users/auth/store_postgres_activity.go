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
	"github.com/AlgorithmxTech/DIY-Internal-Backend/internal/platform/postgres"
)

// # Failed Login Repository

// PostgresFailedLoginRepository implements [FailedLoginRepository] using pgx.
type PostgresFailedLoginRepository struct {
	db postgres.DB
}

// NewFailedLoginRepository creates a new PostgreSQL implementation of the FailedLoginRepository.
func NewFailedLoginRepository(db postgres.DB) *PostgresFailedLoginRepository {
	return &PostgresFailedLoginRepository{db: db}
}

// Create implements [FailedLoginRepository].
func (repository *PostgresFailedLoginRepository) Create(context context.Context, attempt *FailedLoginAttempt) error {
	const query = `
		INSERT INTO users.failedloginattempt (id, email, ipaddress, attemptedat)
		VALUES ($1, $2, $3, $4)`

	if _, err := repository.db.Exec(context, query, attempt.ID, attempt.Email, attempt.IPAddress, attempt.AttemptedAt); err != nil {
		return fmt.Errorf("postgres_failed_login_repo_create_failed: %w", err)
	}
	return nil
}

// CountSince implements [FailedLoginRepository].
func (repository *PostgresFailedLoginRepository) CountSince(context context.Context, email, ipAddress string, since time.Time) (int, error) {
	const query = `
		SELECT COUNT(*)
		FROM users.failedloginattempt
		WHERE email = $1 AND ipaddress = $2 AND attemptedat >= $3`

	var count int
	if err := repository.db.QueryRow(context, query, email, ipAddress, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("postgres_failed_login_repo_count_failed: %w", err)
	}
	return count, nil
}

// DeleteBefore implements [FailedLoginRepository].
func (repository *PostgresFailedLoginRepository) DeleteBefore(context context.Context, before time.Time) (int64, error) {
	const query = `DELETE FROM users.failedloginattempt WHERE attemptedat < $1`

	tag, err := repository.db.Exec(context, query, before)
	if err != nil {
		return 0, fmt.Errorf("postgres_failed_login_repo_prune_failed: %w", err)
	}
	return tag.RowsAffected(), nil
}

// # Device Repository

// PostgresDeviceRepository implements [DeviceRepository] using pgx.
type PostgresDeviceRepository struct {
	db postgres.DB
}

// NewDeviceRepository creates a new PostgreSQL implementation of the DeviceRepository.
func NewDeviceRepository(db postgres.DB) *PostgresDeviceRepository {
	return &PostgresDeviceRepository{db: db}
}

/*
Upsert records a sign-in from a device class.

Description: Relies on the partial unique index over active fingerprints.
`xmax = 0` is true only for a freshly inserted tuple, which gives the
created flag without a second round trip.

Parameters:
  - context: context.Context
  - device: *Device (ID, FirstUsed and LastUsed are refreshed from the stored row)

Returns:
  - bool: Whether a new row was created
  - error: Database errors
*/
func (repository *PostgresDeviceRepository) Upsert(context context.Context, device *Device) (bool, error) {
	const query = `
		INSERT INTO users.device (id, accountid, devicetype, ostype, browser, ipaddress, firstused, lastused, isactive)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7, TRUE)
		ON CONFLICT (accountid, devicetype, ostype, browser) WHERE isactive
		DO UPDATE SET lastused = EXCLUDED.lastused, ipaddress = EXCLUDED.ipaddress
		RETURNING id, firstused, lastused, (xmax = 0) AS inserted`

	var created bool
	err := repository.db.QueryRow(context, query,
		device.ID,
		device.AccountID,
		device.Print.DeviceType,
		device.Print.OSType,
		device.Print.Browser,
		device.IPAddress,
		device.LastUsed,
	).Scan(&device.ID, &device.FirstUsed, &device.LastUsed, &created)
	if err != nil {
		return false, fmt.Errorf("postgres_device_repo_upsert_failed: %w", err)
	}

	device.IsActive = true
	return created, nil
}

// ListByAccount implements [DeviceRepository]. Most recently used first.
func (repository *PostgresDeviceRepository) ListByAccount(context context.Context, accountID string) ([]Device, error) {
	const query = `
		SELECT id, accountid, devicetype, ostype, browser, ipaddress, firstused, lastused, isactive
		FROM users.device
		WHERE accountid = $1
		ORDER BY lastused DESC`

	rows, err := repository.db.Query(context, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("postgres_device_repo_list_failed: %w", err)
	}
	defer rows.Close()

	devices := make([]Device, 0)
	for rows.Next() {
		var item Device
		if err := rows.Scan(
			&item.ID,
			&item.AccountID,
			&item.Print.DeviceType,
			&item.Print.OSType,
			&item.Print.Browser,
			&item.IPAddress,
			&item.FirstUsed,
			&item.LastUsed,
			&item.IsActive,
		); err != nil {
			return nil, fmt.Errorf("postgres_device_repo_scan_failed: %w", err)
		}
		devices = append(devices, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres_device_repo_rows_failed: %w", err)
	}
	return devices, nil
}

// # Session Repository

const sessionColumns = `id, accountid, ipaddress, useragent, lastactivity, isactive, createdat`

// PostgresSessionRepository implements [SessionRepository] using pgx.
type PostgresSessionRepository struct {
	db postgres.DB
}

// NewSessionRepository creates a new PostgreSQL implementation of the SessionRepository.
func NewSessionRepository(db postgres.DB) *PostgresSessionRepository {
	return &PostgresSessionRepository{db: db}
}

func scanSession(row pgx.Row) (*Session, error) {
	session := &Session{}
	err := row.Scan(
		&session.ID,
		&session.AccountID,
		&session.IPAddress,
		&session.UserAgent,
		&session.LastActivity,
		&session.IsActive,
		&session.CreatedAt,
	)
	return session, err
}

// Create implements [SessionRepository].
func (repository *PostgresSessionRepository) Create(context context.Context, session *Session) error {
	const query = `
		INSERT INTO users.session (` + sessionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	if _, err := repository.db.Exec(context, query,
		session.ID,
		session.AccountID,
		session.IPAddress,
		session.UserAgent,
		session.LastActivity,
		session.IsActive,
		session.CreatedAt,
	); err != nil {
		return fmt.Errorf("postgres_session_repo_create_failed: %w", err)
	}
	return nil
}

// FindByID implements [SessionRepository].
func (repository *PostgresSessionRepository) FindByID(context context.Context, id string) (*Session, error) {
	const query = `SELECT ` + sessionColumns + ` FROM users.session WHERE id = $1`

	session, err := scanSession(repository.db.QueryRow(context, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Session")
		}
		return nil, fmt.Errorf("postgres_session_repo_find_failed: %w", err)
	}
	return session, nil
}

// Touch implements [SessionRepository].
func (repository *PostgresSessionRepository) Touch(context context.Context, id string, at time.Time) error {
	const query = `UPDATE users.session SET lastactivity = $2 WHERE id = $1 AND isactive`

	tag, err := repository.db.Exec(context, query, id, at)
	if err != nil {
		return fmt.Errorf("postgres_session_repo_touch_failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("Session")
	}
	return nil
}

// Close implements [SessionRepository].
func (repository *PostgresSessionRepository) Close(context context.Context, id string) error {
	const query = `UPDATE users.session SET isactive = FALSE WHERE id = $1 AND isactive`

	if _, err := repository.db.Exec(context, query, id); err != nil {
		return fmt.Errorf("postgres_session_repo_close_failed: %w", err)
	}
	return nil
}

// CloseAll implements [SessionRepository].
func (repository *PostgresSessionRepository) CloseAll(context context.Context, accountID string) (int64, error) {
	const query = `UPDATE users.session SET isactive = FALSE WHERE accountid = $1 AND isactive`

	tag, err := repository.db.Exec(context, query, accountID)
	if err != nil {
		return 0, fmt.Errorf("postgres_session_repo_close_all_failed: %w", err)
	}
	return tag.RowsAffected(), nil
}

// CloseOthers implements [SessionRepository].
func (repository *PostgresSessionRepository) CloseOthers(context context.Context, accountID, keepID string) (int64, error) {
	const query = `UPDATE users.session SET isactive = FALSE WHERE accountid = $1 AND id <> $2 AND isactive`

	tag, err := repository.db.Exec(context, query, accountID, keepID)
	if err != nil {
		return 0, fmt.Errorf("postgres_session_repo_close_others_failed: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ListActive implements [SessionRepository]. Most recent activity first.
func (repository *PostgresSessionRepository) ListActive(context context.Context, accountID string) ([]Session, error) {
	const query = `
		SELECT ` + sessionColumns + `
		FROM users.session
		WHERE accountid = $1 AND isactive
		ORDER BY lastactivity DESC`

	rows, err := repository.db.Query(context, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("postgres_session_repo_list_failed: %w", err)
	}
	defer rows.Close()

	sessions := make([]Session, 0)
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres_session_repo_scan_failed: %w", err)
		}
		sessions = append(sessions, *session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres_session_repo_rows_failed: %w", err)
	}
	return sessions, nil
}

// CloseIdle implements [SessionRepository].
func (repository *PostgresSessionRepository) CloseIdle(context context.Context, idleSince time.Time) (int64, error) {
	const query = `UPDATE users.session SET isactive = FALSE WHERE isactive AND lastactivity < $1`

	tag, err := repository.db.Exec(context, query, idleSince)
	if err != nil {
		return 0, fmt.Errorf("postgres_session_repo_close_idle_failed: %w", err)
	}
	return tag.RowsAffected(), nil
}
