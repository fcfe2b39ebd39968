// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package auth implements the account credential lifecycle.

It owns the account entity and every flow that creates or changes credentials:
registration, email verification, password reset, password change, login with
brute-force accounting, and the session and device audit trail.

# Architecture

  - Managers: [VerificationManager], [ResetManager], [LoginGuard] and [Tracker]
    each own one concern and their own storage contracts.
  - Service: [Service] composes the managers into register/login/logout/change-password.
  - Handler: [Handler] exposes the flows over HTTP under /api/v1/auth.
  - Storage: PostgreSQL for durable state, Redis for spent verification links.
*/
package auth

import (
	"time"

	"github.com/AlgorithmxTech/DIY-Internal-Backend/pkg/device"
)

// # Domain Entities

// Account is a registered identity.
type Account struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	Handle        string    `json:"handle"`
	PasswordHash  string    `json:"-"` // Explicitly omitted from JSON for security.
	Phone         string    `json:"phone,omitempty"`
	EmailVerified bool      `json:"email_verified"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// RegistrationStatus tracks where an account is in the signup funnel.
type RegistrationStatus string

const (
	RegistrationPending  RegistrationStatus = "pending"
	RegistrationVerified RegistrationStatus = "verified"
	RegistrationExpired  RegistrationStatus = "expired"
)

// RegistrationInfo is the signup audit record, one per account.
type RegistrationInfo struct {
	AccountID               string             `json:"account_id"`
	IPAddress               string             `json:"ip_address"`
	UserAgent               string             `json:"user_agent"`
	Source                  string             `json:"source"`
	Status                  RegistrationStatus `json:"status"`
	VerificationAttempts    int                `json:"verification_attempts"`
	LastVerificationAttempt *time.Time         `json:"last_verification_attempt,omitempty"`
	RegisteredAt            time.Time          `json:"registered_at"`
	VerifiedAt              *time.Time         `json:"verified_at,omitempty"`
}

// PasswordResetToken is a single-use credential for the forgot-password flow.
// Only the SHA-256 digest of the token is stored.
type PasswordResetToken struct {
	ID        string
	AccountID string
	TokenHash string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// IsExpired reports whether the token can no longer be redeemed at now.
func (token *PasswordResetToken) IsExpired(now time.Time) bool {
	return !now.Before(token.ExpiresAt)
}

// FailedLoginAttempt is one rejected login, kept for lockout accounting.
type FailedLoginAttempt struct {
	ID          string
	Email       string
	IPAddress   string
	AttemptedAt time.Time
}

// Device is a device class an account has signed in from.
type Device struct {
	ID        string             `json:"id"`
	AccountID string             `json:"-"`
	Print     device.Fingerprint `json:"fingerprint"`
	IPAddress string             `json:"ip_address"`
	FirstUsed time.Time          `json:"first_used"`
	LastUsed  time.Time          `json:"last_used"`
	IsActive  bool               `json:"is_active"`
}

// Session is one login, tracked until logout or administrative close.
type Session struct {
	ID           string    `json:"id"`
	AccountID    string    `json:"-"`
	IPAddress    string    `json:"ip_address"`
	UserAgent    string    `json:"user_agent"`
	LastActivity time.Time `json:"last_activity"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}
