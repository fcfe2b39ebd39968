// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package account handles profile management and session transparency.

It lets an authenticated account view and update its public identity data
(handle, phone), see where it is signed in, and close sessions it no longer
trusts.

# Architecture

  - Entities: SessionView (DTO).
  - Domain: This package depends on the auth package for the Account, Session
    and Device entities and reuses its repositories and tracker.
  - Security: Every endpoint requires an active session.
*/
package account

import (
	"context"
	"time"

	"github.com/AlgorithmxTech/DIY-Internal-Backend/internal/users/auth"
)

// # Domain Entities

// SessionView provides a safety-mapped view of an active session.
// The raw User-Agent is reduced to a device label for transport.
type SessionView struct {
	ID           string    `json:"id"`
	DeviceName   string    `json:"device_name"` // e.g. "Chrome on Windows"
	IPAddress    string    `json:"ip_address"`
	LastActivity time.Time `json:"last_activity"`
	CreatedAt    time.Time `json:"created_at"`
	IsCurrent    bool      `json:"is_current"` // True if this session made the request
}

// # Repository Contracts

// ProfileRepository is the subset of [auth.AccountRepository] the profile flows need.
type ProfileRepository interface {
	/*
		FindByID retrieves an account by its unique ID.

		Parameters:
		  - context: context.Context
		  - id: string (UUID)

		Returns:
		  - *auth.Account: Loaded account entity
		  - error: apperr.NotFound or storage failures
	*/
	FindByID(context context.Context, id string) (*auth.Account, error)

	// FindByHandle matches handles case-insensitively.
	FindByHandle(context context.Context, handle string) (*auth.Account, error)

	/*
		UpdateProfile persists the mutable profile fields.

		Parameters:
		  - context: context.Context
		  - account: *auth.Account (Hydrated entity with changes)

		Returns:
		  - error: Conflict on a taken handle, or storage failures
	*/
	UpdateProfile(context context.Context, account *auth.Account) error
}

// SessionDirectory is the read and revoke side of [auth.Tracker].
type SessionDirectory interface {
	ListSessions(context context.Context, accountID string) ([]auth.Session, error)
	FindSession(context context.Context, sessionID string) (*auth.Session, error)
	CloseSession(context context.Context, sessionID string) error
	CloseOtherSessions(context context.Context, accountID, keepID string) (int64, error)
	ListDevices(context context.Context, accountID string) ([]auth.Device, error)
}
