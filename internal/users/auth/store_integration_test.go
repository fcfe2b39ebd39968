// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

//go:build integration

package auth_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/AlgorithmxTech/DIY-Internal-Backend/internal/platform/dberr"
	"github.com/AlgorithmxTech/DIY-Internal-Backend/internal/platform/migration"
	"github.com/AlgorithmxTech/DIY-Internal-Backend/internal/users/auth"
	"github.com/AlgorithmxTech/DIY-Internal-Backend/pkg/device"
	"github.com/AlgorithmxTech/DIY-Internal-Backend/pkg/uuid"
)

var pool *pgxpool.Pool

func TestMain(m *testing.M) {
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("accounts_test"),
		postgres.WithUsername("accounts"),
		postgres.WithPassword("accounts"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		slog.Error("postgres_container_start_failed", slog.Any("error", err))
		os.Exit(1)
	}

	code := func() int {
		defer func() { _ = container.Terminate(ctx) }()

		dsn, err := container.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			slog.Error("postgres_container_dsn_failed", slog.Any("error", err))
			return 1
		}

		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		if err := migration.RunUp(dsn, "../../../data/migrations", logger); err != nil {
			slog.Error("postgres_container_migrate_failed", slog.Any("error", err))
			return 1
		}

		pool, err = pgxpool.New(ctx, dsn)
		if err != nil {
			slog.Error("postgres_container_pool_failed", slog.Any("error", err))
			return 1
		}
		defer pool.Close()

		return m.Run()
	}()

	os.Exit(code)
}

func createAccount(t *testing.T, email, handle string) *auth.Account {
	t.Helper()

	account := &auth.Account{ID: uuid.New(), Email: email, Handle: handle, PasswordHash: "hash"}
	registration := &auth.RegistrationInfo{Source: "api", Status: auth.RegistrationPending}

	require.NoError(t, auth.NewAccountRepository(pool).Create(context.Background(), account, registration))
	return account
}

func TestIntegration_AccountLifecycle(t *testing.T) {
	ctx := context.Background()
	accounts := auth.NewAccountRepository(pool)
	registrations := auth.NewRegistrationRepository(pool)

	account := createAccount(t, "lifecycle@example.com", "Lifecycle")

	found, err := accounts.FindByHandle(ctx, "lifecycle")
	require.NoError(t, err)
	assert.Equal(t, account.ID, found.ID)

	info, err := registrations.FindByAccountID(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, auth.RegistrationPending, info.Status)
	assert.Nil(t, info.VerifiedAt)

	require.NoError(t, registrations.RecordVerificationAttempt(ctx, account.ID, time.Now()))

	require.NoError(t, accounts.MarkVerified(ctx, account.ID, time.Now()))

	info, err = registrations.FindByAccountID(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, auth.RegistrationVerified, info.Status)
	assert.Equal(t, 1, info.VerificationAttempts)
	assert.NotNil(t, info.VerifiedAt)

	found, err = accounts.FindByEmail(ctx, "lifecycle@example.com")
	require.NoError(t, err)
	assert.True(t, found.EmailVerified)
}

func TestIntegration_HandleIsCaseInsensitive(t *testing.T) {
	createAccount(t, "first@example.com", "Casey")

	err := auth.NewAccountRepository(pool).Create(context.Background(),
		&auth.Account{ID: uuid.New(), Email: "second@example.com", Handle: "CASEY", PasswordHash: "hash"},
		&auth.RegistrationInfo{Source: "api", Status: auth.RegistrationPending},
	)
	require.Error(t, err)
	assert.True(t, dberr.IsUniqueViolation(err))
	assert.Equal(t, auth.ConstraintAccountHandle, dberr.ConstraintName(err))

	_, err = auth.NewAccountRepository(pool).FindByEmail(context.Background(), "second@example.com")
	assert.ErrorIs(t, err, dberr.ErrNotFound, "the failed transaction must leave nothing behind")
}

func TestIntegration_ResetTokenRedeem(t *testing.T) {
	ctx := context.Background()
	tokens := auth.NewResetTokenRepository(pool)
	account := createAccount(t, "reset@example.com", "resetter")
	now := time.Now().UTC()

	first := &auth.PasswordResetToken{ID: uuid.New(), AccountID: account.ID, TokenHash: "digest-1", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	second := &auth.PasswordResetToken{ID: uuid.New(), AccountID: account.ID, TokenHash: "digest-2", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	require.NoError(t, tokens.Replace(ctx, first))
	require.NoError(t, tokens.Replace(ctx, second))

	_, err := tokens.FindByHash(ctx, "digest-1")
	assert.ErrorIs(t, err, dberr.ErrNotFound, "a new request replaces the old token")

	_, err = tokens.Redeem(ctx, "digest-1", now, "stale-hash")
	assert.ErrorIs(t, err, dberr.ErrNotFound, "a superseded token cannot set a password")

	redeemedFor, err := tokens.Redeem(ctx, "digest-2", now, "new-hash")
	require.NoError(t, err)
	assert.Equal(t, account.ID, redeemedFor)

	_, err = tokens.FindByHash(ctx, "digest-2")
	assert.ErrorIs(t, err, dberr.ErrNotFound)

	_, err = tokens.Redeem(ctx, "digest-2", now, "again-hash")
	assert.ErrorIs(t, err, dberr.ErrNotFound, "tokens are single use")

	found, err := auth.NewAccountRepository(pool).FindByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, "new-hash", found.PasswordHash)
}

func TestIntegration_ResetTokenRedeem_Expired(t *testing.T) {
	ctx := context.Background()
	tokens := auth.NewResetTokenRepository(pool)
	account := createAccount(t, "expired-reset@example.com", "expiredreset")
	now := time.Now().UTC()

	require.NoError(t, tokens.Replace(ctx, &auth.PasswordResetToken{
		ID: uuid.New(), AccountID: account.ID, TokenHash: "digest-expired", CreatedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour),
	}))

	_, err := tokens.Redeem(ctx, "digest-expired", now, "new-hash")
	assert.ErrorIs(t, err, dberr.ErrNotFound)

	found, err := auth.NewAccountRepository(pool).FindByID(ctx, account.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "new-hash", found.PasswordHash)
}

func TestIntegration_FailedLoginWindow(t *testing.T) {
	ctx := context.Background()
	attempts := auth.NewFailedLoginRepository(pool)
	now := time.Now().UTC()

	for _, at := range []time.Time{now.Add(-48 * time.Hour), now.Add(-time.Hour), now} {
		require.NoError(t, attempts.Create(ctx, &auth.FailedLoginAttempt{
			ID: uuid.New(), Email: "window@example.com", IPAddress: "10.0.0.9", AttemptedAt: at,
		}))
	}

	count, err := attempts.CountSince(ctx, "window@example.com", "10.0.0.9", now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	pruned, err := attempts.DeleteBefore(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, pruned, int64(1))
}

func TestIntegration_DeviceUpsert(t *testing.T) {
	ctx := context.Background()
	devices := auth.NewDeviceRepository(pool)
	account := createAccount(t, "device@example.com", "devicer")
	fingerprint := device.Fingerprint{DeviceType: device.TypeDesktop, OSType: "Linux", Browser: "Firefox"}

	first := &auth.Device{ID: uuid.New(), AccountID: account.ID, Print: fingerprint, IPAddress: "10.0.0.1", LastUsed: time.Now().UTC()}
	created, err := devices.Upsert(ctx, first)
	require.NoError(t, err)
	assert.True(t, created)

	again := &auth.Device{ID: uuid.New(), AccountID: account.ID, Print: fingerprint, IPAddress: "10.0.0.2", LastUsed: time.Now().UTC()}
	created, err = devices.Upsert(ctx, again)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID)

	listed, err := devices.ListByAccount(ctx, account.ID)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "10.0.0.2", listed[0].IPAddress)
}

func TestIntegration_Sessions(t *testing.T) {
	ctx := context.Background()
	sessions := auth.NewSessionRepository(pool)
	account := createAccount(t, "sessions@example.com", "sessioner")
	now := time.Now().UTC()

	keep := &auth.Session{ID: uuid.New(), AccountID: account.ID, LastActivity: now, IsActive: true, CreatedAt: now}
	other := &auth.Session{ID: uuid.New(), AccountID: account.ID, LastActivity: now.Add(-72 * time.Hour), IsActive: true, CreatedAt: now}
	require.NoError(t, sessions.Create(ctx, keep))
	require.NoError(t, sessions.Create(ctx, other))

	idle, err := sessions.CloseIdle(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, idle, int64(1))

	assert.ErrorIs(t, sessions.Touch(ctx, other.ID, now), dberr.ErrNotFound)

	active, err := sessions.ListActive(ctx, account.ID)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, keep.ID, active[0].ID)

	closed, err := sessions.CloseAll(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), closed)
}
