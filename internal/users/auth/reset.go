// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/AlgorithmxTech/DIY-Internal-Backend/internal/platform/constants"
	"github.com/AlgorithmxTech/DIY-Internal-Backend/internal/platform/dberr"
	"github.com/AlgorithmxTech/DIY-Internal-Backend/internal/platform/notify"
	"github.com/AlgorithmxTech/DIY-Internal-Backend/internal/platform/sec"
	"github.com/AlgorithmxTech/DIY-Internal-Backend/pkg/clock"
	"github.com/AlgorithmxTech/DIY-Internal-Backend/pkg/identity"
	"github.com/AlgorithmxTech/DIY-Internal-Backend/pkg/uuid"
)

// collisionBackoff paces regeneration after a reset token digest collision.
const collisionBackoff = 10 * time.Millisecond

// ResetConfig holds the immutable settings of a [ResetManager].
type ResetConfig struct {
	// FrontendURL hosts the reset form at /reset-password/{token}.
	FrontendURL string
	TimeToLive  time.Duration
}

// ResetManager runs the forgot-password flow.
type ResetManager struct {
	accounts   AccountRepository
	tokens     ResetTokenRepository
	sessions   SessionRepository
	hasher     sec.PasswordHasher
	notifier   notify.Notifier
	config     ResetConfig
	clock      clock.Clock
	logger     *slog.Logger
	newToken   func(byteLength int) (string, error)
	maxRetries uint64
}

// NewResetManager constructs a [ResetManager].
func NewResetManager(
	accounts AccountRepository,
	tokens ResetTokenRepository,
	sessions SessionRepository,
	hasher sec.PasswordHasher,
	notifier notify.Notifier,
	config ResetConfig,
	clk clock.Clock,
	logger *slog.Logger,
) *ResetManager {
	return &ResetManager{
		accounts:   accounts,
		tokens:     tokens,
		sessions:   sessions,
		hasher:     hasher,
		notifier:   notifier,
		config:     config,
		clock:      clk,
		logger:     logger,
		newToken:   sec.GenerateSecureToken,
		maxRetries: constants.ResetTokenMaxAttempts - 1,
	}
}

/*
RequestReset starts a password reset for email.

Description: Unknown emails return nil, exactly like known ones, so the
response never reveals whether an account exists. Any previous token of the
account stops working. Delivery failure is logged only.

Parameters:
  - context: context.Context
  - email: string (Raw input, normalized here)

Returns:
  - error: Storage failures only
*/
func (manager *ResetManager) RequestReset(context context.Context, email string) error {
	account, err := manager.accounts.FindByEmail(context, identity.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, dberr.ErrNotFound) {
			manager.logger.Info("password_reset_unknown_email")
			return nil
		}
		return err
	}

	token, err := manager.issue(context, account.ID)
	if err != nil {
		return err
	}
	passwordResetsTotal.WithLabelValues(stageRequested).Inc()

	link := strings.TrimRight(manager.config.FrontendURL, "/") + "/reset-password/" + token

	delivered, detail := manager.notifier.Send(context, notify.TemplatePasswordReset, account.Email, map[string]any{
		"handle":     account.Handle,
		"reset_link": link,
	})
	observeDelivery(notify.TemplatePasswordReset, delivered)

	if !delivered {
		manager.logger.Warn("password_reset_delivery_failed",
			slog.String("account_id", account.ID),
			slog.String("detail", detail),
		)
	}
	return nil
}

// issue stores a fresh token for accountID, regenerating on digest collision.
func (manager *ResetManager) issue(ctx context.Context, accountID string) (string, error) {
	var token string

	backoff := retry.WithMaxRetries(manager.maxRetries, retry.NewConstant(collisionBackoff))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		candidate, err := manager.newToken(constants.ResetTokenBytes)
		if err != nil {
			return err
		}

		now := manager.clock.Now()
		err = manager.tokens.Replace(ctx, &PasswordResetToken{
			ID:        uuid.New(),
			AccountID: accountID,
			TokenHash: sec.HashToken(candidate),
			CreatedAt: now,
			ExpiresAt: now.Add(manager.config.TimeToLive),
		})
		if dberr.IsUniqueViolation(err) {
			manager.logger.Warn("password_reset_token_collision", slog.String("account_id", accountID))
			return retry.RetryableError(err)
		}
		if err != nil {
			return err
		}

		token = candidate
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("auth_reset_issue_failed: %w", err)
	}
	return token, nil
}

/*
Redeem sets a new password using a reset token.

Description: The confirmation check runs before any storage access. On
success every reset token of the account is gone and every session is closed.

Parameters:
  - context: context.Context
  - token: string (Raw token from the link)
  - newPassword: string
  - confirmPassword: string

Returns:
  - error: ErrPasswordMismatch, ErrInvalidOrExpiredToken or storage errors
*/
func (manager *ResetManager) Redeem(context context.Context, token, newPassword, confirmPassword string) error {
	if newPassword != confirmPassword {
		return passwordMismatch(FieldConfirmPassword)
	}

	digest := sec.HashToken(token)
	stored, err := manager.tokens.FindByHash(context, digest)
	if err != nil {
		if errors.Is(err, dberr.ErrNotFound) {
			return ErrInvalidOrExpiredToken
		}
		return err
	}
	if stored.IsExpired(manager.clock.Now()) {
		return ErrInvalidOrExpiredToken
	}

	hash, err := manager.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("auth_reset_hash_failed: %w", err)
	}

	// The lookup above may be stale by now; Redeem re-checks the token itself.
	accountID, err := manager.tokens.Redeem(context, digest, manager.clock.Now(), hash)
	if err != nil {
		if errors.Is(err, dberr.ErrNotFound) {
			return ErrInvalidOrExpiredToken
		}
		return err
	}
	passwordResetsTotal.WithLabelValues(stageRedeemed).Inc()

	closed, err := manager.sessions.CloseAll(context, accountID)
	if err != nil {
		manager.logger.Warn("password_reset_session_close_failed",
			slog.String("account_id", accountID),
			slog.Any("error", err),
		)
	}

	manager.logger.Info("password_reset_redeemed",
		slog.String("account_id", accountID),
		slog.Int64("sessions_closed", closed),
	)
	return nil
}
