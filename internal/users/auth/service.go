// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/AlgorithmxTech/DIY-Internal-Backend/internal/platform/constants"
	"github.com/AlgorithmxTech/DIY-Internal-Backend/internal/platform/dberr"
	"github.com/AlgorithmxTech/DIY-Internal-Backend/internal/platform/notify"
	"github.com/AlgorithmxTech/DIY-Internal-Backend/internal/platform/sec"
	"github.com/AlgorithmxTech/DIY-Internal-Backend/internal/platform/validate"
	"github.com/AlgorithmxTech/DIY-Internal-Backend/pkg/clock"
	"github.com/AlgorithmxTech/DIY-Internal-Backend/pkg/device"
	"github.com/AlgorithmxTech/DIY-Internal-Backend/pkg/identity"
	"github.com/AlgorithmxTech/DIY-Internal-Backend/pkg/uuid"
)

// # Contracts & Types

// TokenProvider defines the contract for generating access tokens.
type TokenProvider interface {
	// GenerateAccessToken creates a signed JWT bound to a session.
	//
	// # Returns
	//   - The signed token and its expiry, or an err if signing fails.
	GenerateAccessToken(accountID, handle, sessionID string, timeToLive time.Duration) (string, time.Time, error)
}

// ServiceConfig holds the login policy of a [Service].
type ServiceConfig struct {
	AccessTokenTTL time.Duration
	// EnforceLockout refuses locked pairs even when the password is correct.
	EnforceLockout bool
}

// Service implements the account credential use cases.
//
// # Review Process
//
// This service is critical for security. Any changes to hashing, registration,
// or login logic must be reviewed by the security team.
type Service struct {
	accounts     AccountRepository
	hasher       sec.PasswordHasher
	verification *VerificationManager
	guard        *LoginGuard
	tracker      *Tracker
	tokens       TokenProvider
	notifier     notify.Notifier
	config       ServiceConfig
	clock        clock.Clock
	logger       *slog.Logger

	// decoyHash is verified against when the email is unknown.
	decoyHash func() string
}

// NewService constructs a new [Service] with necessary dependencies.
func NewService(
	accounts AccountRepository,
	hasher sec.PasswordHasher,
	verification *VerificationManager,
	guard *LoginGuard,
	tracker *Tracker,
	tokens TokenProvider,
	notifier notify.Notifier,
	config ServiceConfig,
	clk clock.Clock,
	logger *slog.Logger,
) *Service {
	return &Service{
		accounts:     accounts,
		hasher:       hasher,
		verification: verification,
		guard:        guard,
		tracker:      tracker,
		tokens:       tokens,
		notifier:     notifier,
		config:       config,
		clock:        clk,
		logger:       logger,
		decoyHash: sync.OnceValue(func() string {
			hash, err := hasher.Hash(decoyPassword)
			if err != nil {
				logger.Error("login_decoy_hash_failed", slog.Any("error", err))
				return ""
			}
			return hash
		}),
	}
}

// # Registration Flow

// RegisterInput holds the data required to enroll a new account.
type RegisterInput struct {
	Email           string
	Handle          string
	Password        string
	PasswordConfirm string
	Phone           string

	// Signup attribution
	IPAddress string
	UserAgent string
	Device    device.Fingerprint
	Source    string
}

// Registration is the outcome of a successful [Service.Register].
type Registration struct {
	Account          *Account
	EmailDelivered   bool
	DeliveryDetail   string
	VerificationLink string
}

/*
Register validates, hashes, and persists a brand new account.

Description: Creates the account and its registration record together,
records the signup device and starts email verification. Verification
delivery problems are reported in the result, never as an error.

Parameters:
  - context: context.Context
  - input: RegisterInput

Returns:
  - *Registration: Created account and delivery status
  - err: ErrPasswordMismatch, ErrEmailTaken, ErrHandleTaken or storage errors
*/
func (service *Service) Register(context context.Context, input RegisterInput) (*Registration, error) {
	email := identity.NormalizeEmail(input.Email)
	handle := identity.NormalizeHandle(input.Handle)

	if input.Password != input.PasswordConfirm {
		return nil, passwordMismatch(FieldPasswordConfirm)
	}

	// Pre-checks give a precise error; the unique constraints decide races.
	if err := service.ensureAvailable(context, email, handle); err != nil {
		return nil, err
	}

	hashedPassword, err := service.hasher.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("auth_service_hash_failed: %w", err)
	}

	// Time-sortable ID to prevent PG index fragmentation.
	now := service.clock.Now()
	account := &Account{
		ID:           uuid.New(),
		Email:        email,
		Handle:       handle,
		PasswordHash: hashedPassword,
		Phone:        input.Phone,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	source := input.Source
	if source == "" {
		source = constants.RegistrationSourceAPI
	}
	registration := &RegistrationInfo{
		IPAddress:    input.IPAddress,
		UserAgent:    input.UserAgent,
		Source:       source,
		Status:       RegistrationPending,
		RegisteredAt: now,
	}

	if err := service.accounts.Create(context, account, registration); err != nil {
		if dberr.IsUniqueViolation(err) {
			return nil, takenError(err)
		}
		return nil, fmt.Errorf("auth_service_register_failed: %w", err)
	}
	registrationsTotal.Inc()

	if _, _, err := service.tracker.RecordDevice(context, account.ID, input.Device, input.IPAddress); err != nil {
		service.logger.Warn("registration_device_record_failed",
			slog.String("account_id", account.ID),
			slog.Any("error", err),
		)
	}

	result := &Registration{Account: account}

	delivery, err := service.verification.Start(context, account)
	if err != nil {
		service.logger.Error("verification_start_failed",
			slog.String("account_id", account.ID),
			slog.Any("error", err),
		)
		result.DeliveryDetail = "verification link could not be issued"
		return result, nil
	}

	result.EmailDelivered = delivery.Delivered
	result.DeliveryDetail = delivery.Detail
	result.VerificationLink = delivery.Link
	return result, nil
}

/*
ResendVerification issues a fresh verification link for an unverified account.

Returns:
  - *Delivery: Hand-off outcome, nil when the email is already verified
  - err: ErrAccountNotFound or signing failures
*/
func (service *Service) ResendVerification(context context.Context, accountID string) (*Delivery, error) {
	account, err := service.accounts.FindByID(context, accountID)
	if err != nil {
		if errors.Is(err, dberr.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}

	if account.EmailVerified {
		return nil, nil
	}
	return service.verification.Start(context, account)
}

// ensureAvailable reports the first taken identifier, email before handle.
func (service *Service) ensureAvailable(context context.Context, email, handle string) error {
	if _, err := service.accounts.FindByEmail(context, email); err == nil {
		return ErrEmailTaken
	} else if !errors.Is(err, dberr.ErrNotFound) {
		return err
	}

	if _, err := service.accounts.FindByHandle(context, handle); err == nil {
		return ErrHandleTaken
	} else if !errors.Is(err, dberr.ErrNotFound) {
		return err
	}
	return nil
}

// takenError maps a unique violation on the account table to the taken field.
func takenError(err error) error {
	if dberr.ConstraintName(err) == ConstraintAccountHandle {
		return ErrHandleTaken
	}
	return ErrEmailTaken
}

// # Authentication Flow

// LoginInput defines credentials for an authentication attempt.
type LoginInput struct {
	Email     string
	Password  string
	IPAddress string
	UserAgent string
	Device    device.Fingerprint
}

// LoginSession represents a successfully established account session.
type LoginSession struct {
	AccessToken string
	ExpiresAt   time.Time
	SessionID   string
	Account     *Account
}

/*
Login validates credentials and opens a tracked session.

Description: Every rejected attempt is recorded before the lockout state
is consulted, so the attempt that reaches the threshold already gets the
lockout message. Unknown emails and wrong passwords are indistinguishable.

Parameters:
  - context: context.Context
  - input: LoginInput

Returns:
  - *LoginSession: Access token and session id
  - err: ErrInvalidCredentials, ErrTooManyAttempts or internal failures
*/
func (service *Service) Login(context context.Context, input LoginInput) (*LoginSession, error) {
	email := identity.NormalizeEmail(input.Email)

	if service.config.EnforceLockout {
		locked, err := service.guard.IsLocked(context, email, input.IPAddress)
		if err != nil {
			return nil, err
		}
		if locked {
			lockoutsTotal.Inc()
			return nil, ErrTooManyAttempts
		}
	}

	account, err := service.accounts.FindByEmail(context, email)
	if err != nil && !errors.Is(err, dberr.ErrNotFound) {
		return nil, err
	}

	if account == nil {
		// Unknown emails pay the same hashing cost as wrong passwords.
		service.hasher.Verify(input.Password, service.decoyHash())
		return nil, service.rejectLogin(context, email, input.IPAddress)
	}

	// Constant-time comparison in bcrypt prevents timing attacks on the hash.
	if !service.hasher.Verify(input.Password, account.PasswordHash) {
		return nil, service.rejectLogin(context, email, input.IPAddress)
	}

	session, err := service.tracker.RecordSession(context, account.ID, input.IPAddress, input.UserAgent)
	if err != nil {
		return nil, fmt.Errorf("auth_service_session_failed: %w", err)
	}

	service.noteDevice(context, account, input)

	accessToken, expiresAt, err := service.tokens.GenerateAccessToken(account.ID, account.Handle, session.ID, service.config.AccessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("auth_service_token_failed: %w", err)
	}

	service.logger.Info("login_succeeded",
		slog.String("account_id", account.ID),
		slog.String("session_id", session.ID),
	)

	return &LoginSession{
		AccessToken: accessToken,
		ExpiresAt:   expiresAt,
		SessionID:   session.ID,
		Account:     account,
	}, nil
}

// rejectLogin records the failure and picks the message for the caller.
func (service *Service) rejectLogin(context context.Context, email, ipAddress string) error {
	logger := service.logger.With(slog.String("ip_address", ipAddress))

	if err := service.guard.RecordFailure(context, email, ipAddress); err != nil {
		logger.Error("login_failure_record_failed", slog.Any("error", err))
	}

	locked, err := service.guard.IsLocked(context, email, ipAddress)
	if err != nil {
		logger.Error("login_lockout_check_failed", slog.Any("error", err))
		return ErrInvalidCredentials
	}

	if locked {
		lockoutsTotal.Inc()
		logger.Warn("login_locked_out")
		return ErrTooManyAttempts
	}

	logger.Info("login_failed")
	return ErrInvalidCredentials
}

// noteDevice records the login device and alerts the owner about a new one.
// The first device of an account never triggers an alert.
func (service *Service) noteDevice(context context.Context, account *Account, input LoginInput) {
	_, created, err := service.tracker.RecordDevice(context, account.ID, input.Device, input.IPAddress)
	if err != nil {
		service.logger.Warn("login_device_record_failed",
			slog.String("account_id", account.ID),
			slog.Any("error", err),
		)
		return
	}
	if !created {
		return
	}

	devices, err := service.tracker.ListDevices(context, account.ID)
	if err != nil || len(devices) < 2 {
		return
	}

	delivered, _ := service.notifier.Send(context, notify.TemplateNewDeviceLogin, account.Email, map[string]any{
		"handle":      account.Handle,
		"browser":     input.Device.Browser,
		"os_type":     input.Device.OSType,
		"device_type": input.Device.DeviceType,
		"ip_address":  input.IPAddress,
	})
	observeDelivery(notify.TemplateNewDeviceLogin, delivered)
}

// Logout closes the session the access token is bound to.
func (service *Service) Logout(context context.Context, sessionID string) error {
	return service.tracker.CloseSession(context, sessionID)
}

// # Credential Maintenance

// ChangePasswordInput carries a password change request.
type ChangePasswordInput struct {
	CurrentPassword string
	NewPassword     string
	ConfirmPassword string
	// CurrentSessionID stays open; every other session is closed.
	CurrentSessionID string
}

/*
ChangePassword replaces the password of an authenticated account.

Description: Input rules are checked before the stored hash is read, in the
order mismatch, same-as-old, strength. Other sessions are closed afterwards
on a best-effort basis.

Parameters:
  - context: context.Context
  - accountID: string
  - input: ChangePasswordInput

Returns:
  - err: ErrPasswordMismatch, ErrSameAsOld, ErrWeakPassword,
    ErrAccountNotFound, ErrWrongCurrentPassword or storage errors
*/
func (service *Service) ChangePassword(context context.Context, accountID string, input ChangePasswordInput) error {
	if input.NewPassword != input.ConfirmPassword {
		return passwordMismatch(FieldConfirmPassword)
	}
	if input.NewPassword == input.CurrentPassword {
		return ErrSameAsOld
	}

	strength := &validate.Validator{}
	if strength.StrongPassword(FieldNewPassword, input.NewPassword).HasErrors() {
		return weakPassword(strength.Details())
	}

	account, err := service.accounts.FindByID(context, accountID)
	if err != nil {
		if errors.Is(err, dberr.ErrNotFound) {
			return ErrAccountNotFound
		}
		return err
	}

	if !service.hasher.Verify(input.CurrentPassword, account.PasswordHash) {
		return ErrWrongCurrentPassword
	}

	hashedPassword, err := service.hasher.Hash(input.NewPassword)
	if err != nil {
		return fmt.Errorf("auth_service_hash_failed: %w", err)
	}

	if err := service.accounts.UpdatePassword(context, account.ID, hashedPassword); err != nil {
		return fmt.Errorf("auth_service_change_password_failed: %w", err)
	}

	if _, err := service.tracker.CloseOtherSessions(context, account.ID, input.CurrentSessionID); err != nil {
		service.logger.Warn("password_change_session_close_failed",
			slog.String("account_id", account.ID),
			slog.Any("error", err),
		)
	}

	service.logger.Info("password_changed", slog.String("account_id", account.ID))
	return nil
}
