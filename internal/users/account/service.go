// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/AlgorithmxTech/DIY-Internal-Backend/internal/platform/apperr"
	"github.com/AlgorithmxTech/DIY-Internal-Backend/internal/platform/dberr"
	"github.com/AlgorithmxTech/DIY-Internal-Backend/internal/users/auth"
	"github.com/AlgorithmxTech/DIY-Internal-Backend/pkg/device"
	"github.com/AlgorithmxTech/DIY-Internal-Backend/pkg/identity"
	"github.com/AlgorithmxTech/DIY-Internal-Backend/pkg/slice"
)

// # Service Layer

// Service orchestrates profile updates and session revocation.
type Service struct {
	profiles ProfileRepository
	sessions SessionDirectory
	logger   *slog.Logger
}

// NewService constructs a new [Service] with its dependencies.
func NewService(profiles ProfileRepository, sessions SessionDirectory, logger *slog.Logger) *Service {
	return &Service{
		profiles: profiles,
		sessions: sessions,
		logger:   logger,
	}
}

// # Profile Management

/*
GetProfile retrieves the private profile of an account.

Parameters:
  - context: context.Context
  - accountID: string

Returns:
  - *auth.Account: The hydrated account
  - error: auth.ErrAccountNotFound or execution failures
*/
func (service *Service) GetProfile(context context.Context, accountID string) (*auth.Account, error) {
	account, err := service.profiles.FindByID(context, accountID)
	if err != nil {
		if errors.Is(err, dberr.ErrNotFound) {
			return nil, auth.ErrAccountNotFound
		}
		return nil, fmt.Errorf("account_service_get_profile_failed: %w", err)
	}
	return account, nil
}

// UpdateProfileInput defines the mutable subset of profile fields.
// Nil fields are left unchanged.
type UpdateProfileInput struct {
	Handle *string
	Phone  *string
}

/*
UpdateProfile applies a partial set of changes to an account's profile.

Description: A new handle is normalized and checked against every other
account, case-insensitively. A concurrent claim of the same handle is caught
by the unique index and reported the same way.

Parameters:
  - context: context.Context
  - accountID: string
  - input: UpdateProfileInput

Returns:
  - *auth.Account: The updated account
  - error: auth.ErrHandleTaken, auth.ErrAccountNotFound or storage failures
*/
func (service *Service) UpdateProfile(context context.Context, accountID string, input UpdateProfileInput) (*auth.Account, error) {
	account, err := service.GetProfile(context, accountID)
	if err != nil {
		return nil, err
	}

	if input.Handle != nil {
		handle := identity.NormalizeHandle(*input.Handle)
		if !strings.EqualFold(handle, account.Handle) {
			if err := service.ensureHandleFree(context, accountID, handle); err != nil {
				return nil, err
			}
		}
		account.Handle = handle
	}

	if input.Phone != nil {
		account.Phone = strings.TrimSpace(*input.Phone)
	}

	if err := service.profiles.UpdateProfile(context, account); err != nil {
		if dberr.IsUniqueViolation(err) {
			return nil, auth.ErrHandleTaken
		}
		if errors.Is(err, dberr.ErrNotFound) {
			return nil, auth.ErrAccountNotFound
		}
		return nil, fmt.Errorf("account_service_update_failed: %w", err)
	}

	service.logger.Info("account_profile_updated", slog.String("account_id", accountID))

	return account, nil
}

func (service *Service) ensureHandleFree(context context.Context, accountID, handle string) error {
	owner, err := service.profiles.FindByHandle(context, handle)
	if err != nil {
		if errors.Is(err, dberr.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("account_service_handle_lookup_failed: %w", err)
	}
	if owner.ID != accountID {
		return auth.ErrHandleTaken
	}
	return nil
}

// # Session Security

/*
ListSessions lists the account's active sessions, most recent first.

Parameters:
  - context: context.Context
  - accountID: string
  - currentSessionID: string (Marks the session making the request)

Returns:
  - []SessionView: Active sessions
  - error: Retrieval failures
*/
func (service *Service) ListSessions(context context.Context, accountID, currentSessionID string) ([]SessionView, error) {
	sessions, err := service.sessions.ListSessions(context, accountID)
	if err != nil {
		return nil, fmt.Errorf("account_service_list_sessions_failed: %w", err)
	}

	return slice.Map(sessions, func(session auth.Session) SessionView {
		return SessionView{
			ID:           session.ID,
			DeviceName:   deviceName(session.UserAgent),
			IPAddress:    session.IPAddress,
			LastActivity: session.LastActivity,
			CreatedAt:    session.CreatedAt,
			IsCurrent:    session.ID == currentSessionID,
		}
	}), nil
}

/*
CloseSession signs out one session owned by the account.

Description: A session that belongs to someone else is reported as missing
so that session ids cannot be probed.

Parameters:
  - context: context.Context
  - accountID: string (Owner validation)
  - sessionID: string

Returns:
  - error: apperr.NotFound or revocation failures
*/
func (service *Service) CloseSession(context context.Context, accountID, sessionID string) error {
	session, err := service.sessions.FindSession(context, sessionID)
	if err != nil {
		if errors.Is(err, dberr.ErrNotFound) {
			return apperr.NotFound("Session")
		}
		return fmt.Errorf("account_service_find_session_failed: %w", err)
	}
	if session.AccountID != accountID || !session.IsActive {
		return apperr.NotFound("Session")
	}

	if err := service.sessions.CloseSession(context, sessionID); err != nil {
		return fmt.Errorf("account_service_close_session_failed: %w", err)
	}

	service.logger.Info("account_session_closed",
		slog.String("account_id", accountID),
		slog.String("session_id", sessionID),
	)
	return nil
}

/*
CloseOtherSessions signs out every session except the current one.

Returns:
  - int64: Number of sessions closed
  - error: Revocation failures
*/
func (service *Service) CloseOtherSessions(context context.Context, accountID, currentSessionID string) (int64, error) {
	closed, err := service.sessions.CloseOtherSessions(context, accountID, currentSessionID)
	if err != nil {
		return 0, fmt.Errorf("account_service_close_others_failed: %w", err)
	}

	service.logger.Info("account_other_sessions_closed",
		slog.String("account_id", accountID),
		slog.Int64("closed", closed),
	)
	return closed, nil
}

// ListDevices lists the device classes the account has signed in from.
func (service *Service) ListDevices(context context.Context, accountID string) ([]auth.Device, error) {
	devices, err := service.sessions.ListDevices(context, accountID)
	if err != nil {
		return nil, fmt.Errorf("account_service_list_devices_failed: %w", err)
	}
	return devices, nil
}

// deviceName renders a short label such as "Chrome on Windows".
func deviceName(userAgent string) string {
	fingerprint := device.Parse(userAgent)
	if fingerprint.Browser == device.Unknown && fingerprint.OSType == device.Unknown {
		return "Unknown device"
	}
	return fingerprint.Browser + " on " + fingerprint.OSType
}
