// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/AlgorithmxTech/DIY-Internal-Backend/internal/platform/dberr"
	"github.com/AlgorithmxTech/DIY-Internal-Backend/internal/platform/notify"
	"github.com/AlgorithmxTech/DIY-Internal-Backend/internal/platform/sec"
	"github.com/AlgorithmxTech/DIY-Internal-Backend/pkg/clock"
)

// TokenSigner issues and validates stateless signed tokens.
//
// Implemented by [sec.Signer].
type TokenSigner interface {
	Issue(payload sec.SignedPayload, timeToLive time.Duration) (string, error)
	Validate(token string, maxAge time.Duration) (*sec.SignedPayload, error)
}

// VerificationStatus is the result of a successful confirmation.
type VerificationStatus string

const (
	StatusVerified        VerificationStatus = "verified"
	StatusAlreadyVerified VerificationStatus = "already_verified"
)

// Delivery reports how a notification hand-off went. It is never an error.
type Delivery struct {
	Delivered bool
	Detail    string
	// Link is the URL that was sent. Only surfaced to clients in debug mode.
	Link string
}

// VerificationManager issues and redeems email verification links.
type VerificationManager struct {
	accounts      AccountRepository
	registrations RegistrationRepository
	spent         SpentTokenStore
	signer        TokenSigner
	notifier      notify.Notifier
	linkBase      string
	timeToLive    time.Duration
	clock         clock.Clock
	logger        *slog.Logger
}

// VerificationConfig holds the immutable settings of a [VerificationManager].
type VerificationConfig struct {
	// LinkBase is the confirm endpoint; the token is appended as ?token=.
	LinkBase   string
	TimeToLive time.Duration
}

// NewVerificationManager constructs a [VerificationManager].
func NewVerificationManager(
	accounts AccountRepository,
	registrations RegistrationRepository,
	spent SpentTokenStore,
	signer TokenSigner,
	notifier notify.Notifier,
	config VerificationConfig,
	clk clock.Clock,
	logger *slog.Logger,
) *VerificationManager {
	return &VerificationManager{
		accounts:      accounts,
		registrations: registrations,
		spent:         spent,
		signer:        signer,
		notifier:      notifier,
		linkBase:      config.LinkBase,
		timeToLive:    config.TimeToLive,
		clock:         clk,
		logger:        logger,
	}
}

/*
Start issues a verification link for account and hands it to the notifier.

Description: The token is never revoked when delivery fails. The caller
learns the outcome from the returned [Delivery].

Parameters:
  - context: context.Context
  - account: *Account

Returns:
  - *Delivery: Hand-off outcome and the issued link
  - error: Only if the token could not be signed
*/
func (manager *VerificationManager) Start(context context.Context, account *Account) (*Delivery, error) {
	token, err := manager.signer.Issue(sec.SignedPayload{
		AccountID: account.ID,
		Email:     account.Email,
	}, manager.timeToLive)
	if err != nil {
		return nil, fmt.Errorf("auth_verification_issue_failed: %w", err)
	}

	link := manager.linkBase + "?token=" + url.QueryEscape(token)

	delivered, detail := manager.notifier.Send(context, notify.TemplateEmailVerification, account.Email, map[string]any{
		"handle":            account.Handle,
		"verification_link": link,
		"expires_in_hours":  int(manager.timeToLive / time.Hour),
	})
	observeDelivery(notify.TemplateEmailVerification, delivered)

	manager.logger.Info("verification_started",
		slog.String("account_id", account.ID),
		slog.Bool("delivered", delivered),
		slog.String("detail", detail),
	)

	return &Delivery{Delivered: delivered, Detail: detail, Link: link}, nil
}

/*
Confirm redeems a verification token.

Description: Validation failures, replays and expiry all surface as
[ErrInvalidOrExpiredToken]. An expired token that still decodes counts as a
verification attempt on its account. Confirming an already verified account
has no side effects.

Parameters:
  - context: context.Context
  - token: string

Returns:
  - VerificationStatus: [StatusVerified] or [StatusAlreadyVerified]
  - error: ErrInvalidOrExpiredToken, ErrAccountNotFound or storage errors
*/
func (manager *VerificationManager) Confirm(context context.Context, token string) (VerificationStatus, error) {
	payload, err := manager.signer.Validate(token, manager.timeToLive)
	switch {
	case err == nil:
	case errors.Is(err, sec.ErrExpired):
		verificationsTotal.WithLabelValues(outcomeExpired).Inc()
		manager.recordAttempt(context, payload.AccountID)
		return "", ErrInvalidOrExpiredToken
	default:
		verificationsTotal.WithLabelValues(outcomeInvalid).Inc()
		manager.logger.Info("verification_token_rejected", slog.String("reason", err.Error()))
		return "", ErrInvalidOrExpiredToken
	}

	account, err := manager.accounts.FindByID(context, payload.AccountID)
	if err != nil {
		if errors.Is(err, dberr.ErrNotFound) {
			return "", ErrAccountNotFound
		}
		return "", err
	}
	if account.Email != payload.Email {
		return "", ErrAccountNotFound
	}

	if account.EmailVerified {
		verificationsTotal.WithLabelValues(outcomeAlreadyVerified).Inc()
		return StatusAlreadyVerified, nil
	}

	remaining := payload.IssuedAt.Add(manager.timeToLive).Sub(manager.clock.Now())
	claimed, err := manager.spent.Claim(context, payload.TokenID, remaining)
	if err != nil {
		return "", err
	}
	if !claimed {
		verificationsTotal.WithLabelValues(outcomeReplayed).Inc()
		return "", ErrInvalidOrExpiredToken
	}

	if err := manager.accounts.MarkVerified(context, account.ID, manager.clock.Now()); err != nil {
		// The link stays usable for a retry.
		if releaseErr := manager.spent.Release(context, payload.TokenID); releaseErr != nil {
			manager.logger.Warn("verification_token_release_failed",
				slog.String("account_id", account.ID),
				slog.Any("error", releaseErr),
			)
		}
		return "", err
	}

	verificationsTotal.WithLabelValues(outcomeVerified).Inc()
	manager.logger.Info("email_verified", slog.String("account_id", account.ID))
	return StatusVerified, nil
}

// recordAttempt bumps the attempt counter. Failures are logged; the caller
// already has its answer.
func (manager *VerificationManager) recordAttempt(context context.Context, accountID string) {
	err := manager.registrations.RecordVerificationAttempt(context, accountID, manager.clock.Now())
	if err != nil && !errors.Is(err, dberr.ErrNotFound) {
		manager.logger.Warn("verification_attempt_record_failed",
			slog.String("account_id", accountID),
			slog.Any("error", err),
		)
	}
}
