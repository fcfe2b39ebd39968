// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"time"
)

// # Account Data Access

// AccountRepository defines the data access contract for accounts.
//
// Lookups return an error matching [dberr.ErrNotFound] when no row exists.
type AccountRepository interface {

	/*
		FindByID returns the account with the given ID.

		Parameters:
		  - context: context.Context
		  - id: string

		Returns:
		  - *Account: Hydrated entity
		  - error: NotFound or database retrieval failures
	*/
	FindByID(context context.Context, id string) (*Account, error)

	/*
		FindByEmail returns the account with the given normalized email.

		Parameters:
		  - context: context.Context
		  - email: string

		Returns:
		  - *Account: Hydrated entity
		  - error: NotFound or database retrieval failures
	*/
	FindByEmail(context context.Context, email string) (*Account, error)

	/*
		FindByHandle returns the account whose handle matches case-insensitively.

		Parameters:
		  - context: context.Context
		  - handle: string

		Returns:
		  - *Account: Hydrated entity
		  - error: NotFound or database retrieval failures
	*/
	FindByHandle(context context.Context, handle string) (*Account, error)

	/*
		Create persists a new account together with its registration record.

		Description: Both rows are written in one transaction; a unique violation
		surfaces as a conflict whose constraint name identifies the taken field.

		Parameters:
		  - context: context.Context
		  - account: *Account
		  - registration: *RegistrationInfo

		Returns:
		  - error: Conflict or persistence failures
	*/
	Create(context context.Context, account *Account, registration *RegistrationInfo) error

	/*
		UpdateProfile persists the mutable profile fields (handle, phone).

		Parameters:
		  - context: context.Context
		  - account: *Account

		Returns:
		  - error: Conflict, NotFound or persistence failures
	*/
	UpdateProfile(context context.Context, account *Account) error

	/*
		UpdatePassword replaces only the account's password hash.

		Parameters:
		  - context: context.Context
		  - accountID: string
		  - newHash: string

		Returns:
		  - error: NotFound or persistence failures
	*/
	UpdatePassword(context context.Context, accountID, newHash string) error

	/*
		MarkVerified sets the email-verified flag and moves the registration
		record to verified, atomically.

		Parameters:
		  - context: context.Context
		  - accountID: string
		  - at: time.Time (Verification timestamp)

		Returns:
		  - error: Persistence failures
	*/
	MarkVerified(context context.Context, accountID string, at time.Time) error
}

// RegistrationRepository gives access to signup audit records.
type RegistrationRepository interface {
	FindByAccountID(context context.Context, accountID string) (*RegistrationInfo, error)

	// RecordVerificationAttempt increments the attempt counter and stamps the
	// attempt time. Returns NotFound when the account has no record.
	RecordVerificationAttempt(context context.Context, accountID string, at time.Time) error

	// ExpirePending moves pending registrations older than registeredBefore to expired.
	ExpirePending(context context.Context, registeredBefore time.Time) (int64, error)
}

// # Credential Data Access

// ResetTokenRepository stores hashed password-reset tokens.
type ResetTokenRepository interface {

	/*
		Replace deletes every existing token of the account and inserts the new one.

		Description: Runs in one transaction, so an account never holds two
		live tokens. A digest collision surfaces as a unique violation.

		Parameters:
		  - context: context.Context
		  - token: *PasswordResetToken

		Returns:
		  - error: Conflict or persistence failures
	*/
	Replace(context context.Context, token *PasswordResetToken) error

	/*
		FindByHash returns the token with the given digest, expired or not.

		Parameters:
		  - context: context.Context
		  - tokenHash: string

		Returns:
		  - *PasswordResetToken: Hydrated entity
		  - error: NotFound or database retrieval failures
	*/
	FindByHash(context context.Context, tokenHash string) (*PasswordResetToken, error)

	/*
		Redeem deletes the live token with the given digest, sets the new password
		hash of its account and deletes every other reset token of that account,
		in one transaction.

		Parameters:
		  - context: context.Context
		  - tokenHash: string
		  - now: time.Time
		  - newPasswordHash: string

		Returns:
		  - string: The account id of the redeemed token
		  - error: NotFound when the token is gone or expired, or persistence failures
	*/
	Redeem(context context.Context, tokenHash string, now time.Time, newPasswordHash string) (string, error)

	// DeleteExpired removes tokens that expired before now.
	DeleteExpired(context context.Context, now time.Time) (int64, error)
}

// # Audit Data Access

// FailedLoginRepository stores rejected login attempts.
type FailedLoginRepository interface {
	Create(context context.Context, attempt *FailedLoginAttempt) error
	// CountSince counts attempts for the (email, ip) pair at or after since.
	CountSince(context context.Context, email, ipAddress string, since time.Time) (int, error)
	DeleteBefore(context context.Context, before time.Time) (int64, error)
}

// DeviceRepository stores the device classes an account has used.
type DeviceRepository interface {
	// Upsert inserts the device or refreshes LastUsed and IPAddress of the active
	// row with the same fingerprint. The bool reports whether a row was created.
	Upsert(context context.Context, device *Device) (bool, error)
	ListByAccount(context context.Context, accountID string) ([]Device, error)
}

// SessionRepository stores login sessions.
type SessionRepository interface {
	Create(context context.Context, session *Session) error
	FindByID(context context.Context, id string) (*Session, error)
	// Touch stamps activity on an active session. Returns NotFound when the
	// session does not exist or is closed.
	Touch(context context.Context, id string, at time.Time) error
	// Close deactivates a session. Closing a closed session is not an error.
	Close(context context.Context, id string) error
	CloseAll(context context.Context, accountID string) (int64, error)
	CloseOthers(context context.Context, accountID, keepID string) (int64, error)
	ListActive(context context.Context, accountID string) ([]Session, error)
	// CloseIdle deactivates sessions whose last activity is before idleSince.
	CloseIdle(context context.Context, idleSince time.Time) (int64, error)
}

// # Volatile Data Access

// SpentTokenStore remembers redeemed verification links until they would have
// expired anyway.
type SpentTokenStore interface {
	// Claim marks tokenID as spent. It returns false when it was already spent.
	Claim(context context.Context, tokenID string, ttl time.Duration) (bool, error)

	// Release forgets a claim whose verification could not be persisted.
	Release(context context.Context, tokenID string) error
}
