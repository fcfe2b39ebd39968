// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"time"

	"github.com/AlgorithmxTech/DIY-Internal-Backend/pkg/clock"
	"github.com/AlgorithmxTech/DIY-Internal-Backend/pkg/identity"
	"github.com/AlgorithmxTech/DIY-Internal-Backend/pkg/uuid"
)

// GuardConfig holds the lockout policy.
type GuardConfig struct {
	// Threshold is the failure count at which a pair is locked.
	Threshold int
	// Window is how far back failures are counted.
	Window time.Duration
}

/*
LoginGuard keeps the failed-login audit and answers lockout queries.

Lockout is keyed by the exact (email, ip) pair. The count is read without
locking, so two concurrent failures may both observe the pre-write count.
*/
type LoginGuard struct {
	attempts FailedLoginRepository
	config   GuardConfig
	clock    clock.Clock
}

// NewLoginGuard constructs a [LoginGuard].
func NewLoginGuard(attempts FailedLoginRepository, config GuardConfig, clk clock.Clock) *LoginGuard {
	return &LoginGuard{attempts: attempts, config: config, clock: clk}
}

// RecordFailure appends a failed attempt. Storage failure returns [ErrAuditWriteFailed].
func (guard *LoginGuard) RecordFailure(context context.Context, email, ipAddress string) error {
	err := guard.attempts.Create(context, &FailedLoginAttempt{
		ID:          uuid.New(),
		Email:       identity.NormalizeEmail(email),
		IPAddress:   ipAddress,
		AttemptedAt: guard.clock.Now(),
	})
	if err != nil {
		return auditWriteFailed(err)
	}

	failedLoginsTotal.Inc()
	return nil
}

// IsLocked reports whether the pair reached the threshold within the window.
func (guard *LoginGuard) IsLocked(context context.Context, email, ipAddress string) (bool, error) {
	since := guard.clock.Now().Add(-guard.config.Window)

	count, err := guard.attempts.CountSince(context, identity.NormalizeEmail(email), ipAddress, since)
	if err != nil {
		return false, err
	}
	return count >= guard.config.Threshold, nil
}
