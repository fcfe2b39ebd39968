// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/AlgorithmxTech/DIY-Internal-Backend/internal/platform/apperr"
	"github.com/AlgorithmxTech/DIY-Internal-Backend/internal/platform/constants"
	"github.com/AlgorithmxTech/DIY-Internal-Backend/internal/platform/dberr"
	"github.com/AlgorithmxTech/DIY-Internal-Backend/internal/platform/sec"
	"github.com/AlgorithmxTech/DIY-Internal-Backend/pkg/clock"
)

// # In-Memory Storage

// memoryStore backs every repository contract with maps. calls counts every
// repository call and writes every mutation, so tests can assert that a flow
// stopped before touching storage.
type memoryStore struct {
	mu sync.Mutex

	accounts      map[string]*Account
	registrations map[string]*RegistrationInfo
	resetTokens   map[string]*PasswordResetToken
	attempts      []FailedLoginAttempt
	devices       []*Device
	sessions      map[string]*Session
	spent         map[string]time.Duration

	calls  int
	writes int

	// Injected failures
	createErr       error
	attemptErr      error
	sessionErr      error
	markVerifiedErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		accounts:      map[string]*Account{},
		registrations: map[string]*RegistrationInfo{},
		resetTokens:   map[string]*PasswordResetToken{},
		sessions:      map[string]*Session{},
		spent:         map[string]time.Duration{},
	}
}

func (store *memoryStore) touch(write bool) {
	store.calls++
	if write {
		store.writes++
	}
}

// uniqueViolation builds the error the Postgres repositories return on 23505.
func uniqueViolation(constraint string) error {
	return dberr.Wrap(&pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: constraint}, "memory_insert")
}

type memoryAccounts struct{ *memoryStore }

func (store memoryAccounts) find(match func(*Account) bool) (*Account, error) {
	for _, account := range store.accounts {
		if match(account) {
			copied := *account
			return &copied, nil
		}
	}
	return nil, apperr.NotFound("Account")
}

func (store memoryAccounts) FindByID(_ context.Context, id string) (*Account, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.touch(false)
	return store.find(func(account *Account) bool { return account.ID == id })
}

func (store memoryAccounts) FindByEmail(_ context.Context, email string) (*Account, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.touch(false)
	return store.find(func(account *Account) bool { return account.Email == email })
}

func (store memoryAccounts) FindByHandle(_ context.Context, handle string) (*Account, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.touch(false)
	return store.find(func(account *Account) bool { return strings.EqualFold(account.Handle, handle) })
}

func (store memoryAccounts) Create(_ context.Context, account *Account, registration *RegistrationInfo) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.touch(true)

	if store.createErr != nil {
		return store.createErr
	}
	for _, existing := range store.accounts {
		if existing.Email == account.Email {
			return uniqueViolation(ConstraintAccountEmail)
		}
		if strings.EqualFold(existing.Handle, account.Handle) {
			return uniqueViolation(ConstraintAccountHandle)
		}
	}

	copied := *account
	store.accounts[account.ID] = &copied

	registration.AccountID = account.ID
	info := *registration
	store.registrations[account.ID] = &info
	return nil
}

func (store memoryAccounts) UpdateProfile(_ context.Context, account *Account) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.touch(true)

	existing, ok := store.accounts[account.ID]
	if !ok {
		return apperr.NotFound("Account")
	}
	for _, other := range store.accounts {
		if other.ID != account.ID && strings.EqualFold(other.Handle, account.Handle) {
			return uniqueViolation(ConstraintAccountHandle)
		}
	}
	existing.Handle = account.Handle
	existing.Phone = account.Phone
	return nil
}

func (store memoryAccounts) UpdatePassword(_ context.Context, accountID, newHash string) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.touch(true)

	existing, ok := store.accounts[accountID]
	if !ok {
		return apperr.NotFound("Account")
	}
	existing.PasswordHash = newHash
	return nil
}

func (store memoryAccounts) MarkVerified(_ context.Context, accountID string, at time.Time) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.touch(true)

	if store.markVerifiedErr != nil {
		return store.markVerifiedErr
	}

	existing, ok := store.accounts[accountID]
	if !ok {
		return apperr.NotFound("Account")
	}
	existing.EmailVerified = true

	if info, ok := store.registrations[accountID]; ok {
		info.Status = RegistrationVerified
		verifiedAt := at
		info.VerifiedAt = &verifiedAt
	}
	return nil
}

type memoryRegistrations struct{ *memoryStore }

func (store memoryRegistrations) FindByAccountID(_ context.Context, accountID string) (*RegistrationInfo, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.touch(false)

	info, ok := store.registrations[accountID]
	if !ok {
		return nil, apperr.NotFound("Registration")
	}
	copied := *info
	return &copied, nil
}

func (store memoryRegistrations) RecordVerificationAttempt(_ context.Context, accountID string, at time.Time) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.touch(true)

	info, ok := store.registrations[accountID]
	if !ok {
		return apperr.NotFound("Registration")
	}
	info.VerificationAttempts++
	attemptAt := at
	info.LastVerificationAttempt = &attemptAt
	return nil
}

func (store memoryRegistrations) ExpirePending(_ context.Context, registeredBefore time.Time) (int64, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.touch(true)

	var expired int64
	for _, info := range store.registrations {
		if info.Status == RegistrationPending && info.RegisteredAt.Before(registeredBefore) {
			info.Status = RegistrationExpired
			expired++
		}
	}
	return expired, nil
}

type memoryResetTokens struct{ *memoryStore }

func (store memoryResetTokens) Replace(_ context.Context, token *PasswordResetToken) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.touch(true)

	for _, existing := range store.resetTokens {
		if existing.AccountID != token.AccountID && existing.TokenHash == token.TokenHash {
			return uniqueViolation(ConstraintResetToken)
		}
	}
	for id, existing := range store.resetTokens {
		if existing.AccountID == token.AccountID {
			delete(store.resetTokens, id)
		}
	}

	copied := *token
	store.resetTokens[token.ID] = &copied
	return nil
}

func (store memoryResetTokens) FindByHash(_ context.Context, tokenHash string) (*PasswordResetToken, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.touch(false)

	for _, existing := range store.resetTokens {
		if existing.TokenHash == tokenHash {
			copied := *existing
			return &copied, nil
		}
	}
	return nil, apperr.NotFound("Reset token")
}

func (store memoryResetTokens) Redeem(_ context.Context, tokenHash string, now time.Time, newPasswordHash string) (string, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.touch(true)

	var claimed *PasswordResetToken
	for id, existing := range store.resetTokens {
		if existing.TokenHash == tokenHash && !existing.IsExpired(now) {
			claimed = existing
			delete(store.resetTokens, id)
			break
		}
	}
	if claimed == nil {
		return "", apperr.NotFound("Reset token")
	}

	account, ok := store.accounts[claimed.AccountID]
	if !ok {
		return "", apperr.NotFound("Account")
	}
	account.PasswordHash = newPasswordHash

	for id, existing := range store.resetTokens {
		if existing.AccountID == claimed.AccountID {
			delete(store.resetTokens, id)
		}
	}
	return claimed.AccountID, nil
}

func (store memoryResetTokens) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.touch(true)

	var deleted int64
	for id, existing := range store.resetTokens {
		if existing.IsExpired(now) {
			delete(store.resetTokens, id)
			deleted++
		}
	}
	return deleted, nil
}

type memoryAttempts struct{ *memoryStore }

func (store memoryAttempts) Create(_ context.Context, attempt *FailedLoginAttempt) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.touch(true)

	if store.attemptErr != nil {
		return store.attemptErr
	}
	store.attempts = append(store.attempts, *attempt)
	return nil
}

func (store memoryAttempts) CountSince(_ context.Context, email, ipAddress string, since time.Time) (int, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.touch(false)

	count := 0
	for _, attempt := range store.attempts {
		if attempt.Email == email && attempt.IPAddress == ipAddress && !attempt.AttemptedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (store memoryAttempts) DeleteBefore(_ context.Context, before time.Time) (int64, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.touch(true)

	kept := store.attempts[:0]
	var deleted int64
	for _, attempt := range store.attempts {
		if attempt.AttemptedAt.Before(before) {
			deleted++
			continue
		}
		kept = append(kept, attempt)
	}
	store.attempts = kept
	return deleted, nil
}

type memoryDevices struct{ *memoryStore }

func (store memoryDevices) Upsert(_ context.Context, device *Device) (bool, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.touch(true)

	for _, existing := range store.devices {
		if existing.IsActive && existing.AccountID == device.AccountID && existing.Print == device.Print {
			existing.LastUsed = device.LastUsed
			existing.IPAddress = device.IPAddress
			device.ID = existing.ID
			device.FirstUsed = existing.FirstUsed
			return false, nil
		}
	}

	copied := *device
	store.devices = append(store.devices, &copied)
	return true, nil
}

func (store memoryDevices) ListByAccount(_ context.Context, accountID string) ([]Device, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.touch(false)

	devices := make([]Device, 0)
	for _, existing := range store.devices {
		if existing.AccountID == accountID {
			devices = append(devices, *existing)
		}
	}
	return devices, nil
}

type memorySessions struct{ *memoryStore }

func (store memorySessions) Create(_ context.Context, session *Session) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.touch(true)

	if store.sessionErr != nil {
		return store.sessionErr
	}
	copied := *session
	store.sessions[session.ID] = &copied
	return nil
}

func (store memorySessions) FindByID(_ context.Context, id string) (*Session, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.touch(false)

	session, ok := store.sessions[id]
	if !ok {
		return nil, apperr.NotFound("Session")
	}
	copied := *session
	return &copied, nil
}

func (store memorySessions) Touch(_ context.Context, id string, at time.Time) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.touch(true)

	session, ok := store.sessions[id]
	if !ok || !session.IsActive {
		return apperr.NotFound("Session")
	}
	session.LastActivity = at
	return nil
}

func (store memorySessions) Close(_ context.Context, id string) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.touch(true)

	if session, ok := store.sessions[id]; ok {
		session.IsActive = false
	}
	return nil
}

func (store memorySessions) closeWhere(match func(*Session) bool) int64 {
	var closed int64
	for _, session := range store.sessions {
		if session.IsActive && match(session) {
			session.IsActive = false
			closed++
		}
	}
	return closed
}

func (store memorySessions) CloseAll(_ context.Context, accountID string) (int64, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.touch(true)
	return store.closeWhere(func(session *Session) bool { return session.AccountID == accountID }), nil
}

func (store memorySessions) CloseOthers(_ context.Context, accountID, keepID string) (int64, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.touch(true)
	return store.closeWhere(func(session *Session) bool {
		return session.AccountID == accountID && session.ID != keepID
	}), nil
}

func (store memorySessions) ListActive(_ context.Context, accountID string) ([]Session, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.touch(false)

	sessions := make([]Session, 0)
	for _, session := range store.sessions {
		if session.AccountID == accountID && session.IsActive {
			sessions = append(sessions, *session)
		}
	}
	return sessions, nil
}

func (store memorySessions) CloseIdle(_ context.Context, idleSince time.Time) (int64, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.touch(true)
	return store.closeWhere(func(session *Session) bool { return session.LastActivity.Before(idleSince) }), nil
}

type memorySpent struct{ *memoryStore }

func (store memorySpent) Claim(_ context.Context, tokenID string, ttl time.Duration) (bool, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.touch(true)

	if _, ok := store.spent[tokenID]; ok {
		return false, nil
	}
	store.spent[tokenID] = ttl
	return true, nil
}

func (store memorySpent) Release(_ context.Context, tokenID string) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.touch(true)

	delete(store.spent, tokenID)
	return nil
}

func (store *memoryStore) activeSessions(accountID string) int {
	store.mu.Lock()
	defer store.mu.Unlock()

	count := 0
	for _, session := range store.sessions {
		if session.AccountID == accountID && session.IsActive {
			count++
		}
	}
	return count
}

func (store *memoryStore) counters() (calls, writes int) {
	store.mu.Lock()
	defer store.mu.Unlock()
	return store.calls, store.writes
}

// # Notifier

type sentMessage struct {
	Template  string
	Recipient string
	Data      map[string]any
}

// recordingNotifier remembers every hand-off and reports the configured outcome.
type recordingNotifier struct {
	mu       sync.Mutex
	sent     []sentMessage
	failWith string
}

func (notifier *recordingNotifier) Send(_ context.Context, template, recipient string, data map[string]any) (bool, string) {
	notifier.mu.Lock()
	defer notifier.mu.Unlock()

	notifier.sent = append(notifier.sent, sentMessage{Template: template, Recipient: recipient, Data: data})
	if notifier.failWith != "" {
		return false, notifier.failWith
	}
	return true, "recorded"
}

func (notifier *recordingNotifier) byTemplate(template string) []sentMessage {
	notifier.mu.Lock()
	defer notifier.mu.Unlock()

	var matched []sentMessage
	for _, message := range notifier.sent {
		if message.Template == template {
			matched = append(matched, message)
		}
	}
	return matched
}

// # Harness

const (
	testSecret      = "0123456789abcdef0123456789abcdef-test"
	testFrontendURL = "https://app.example.test"
	testConfirmURL  = "https://api.example.test/api/v1/auth/verify-email/confirm"
)

var (
	testKeyOnce sync.Once
	testKey     *rsa.PrivateKey
)

func rsaKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	testKeyOnce.Do(func() {
		var err error
		testKey, err = rsa.GenerateKey(rand.Reader, 2048)
		require.NoError(t, err)
	})
	require.NotNil(t, testKey)
	return testKey
}

type harness struct {
	store    *memoryStore
	clock    *clock.Manual
	notifier *recordingNotifier
	signer   *sec.Signer
	tokens   *sec.TokenService
	hasher   sec.PasswordHasher

	verification *VerificationManager
	resets       *ResetManager
	guard        *LoginGuard
	tracker      *Tracker
	service      *Service
}

type harnessOption func(*ServiceConfig)

func withEnforcedLockout() harnessOption {
	return func(config *ServiceConfig) { config.EnforceLockout = true }
}

func newHarness(t *testing.T, options ...harnessOption) *harness {
	t.Helper()

	store := newMemoryStore()
	manual := clock.NewManual(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	notifier := &recordingNotifier{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hasher := sec.BcryptHasher{Cost: bcrypt.MinCost}

	signer, err := sec.NewSigner(testSecret, constants.VerificationPurpose, manual)
	require.NoError(t, err)

	key := rsaKey(t)
	tokens := sec.NewTokenServiceFromKey(key, &key.PublicKey, constants.AuthIssuer, manual)

	serviceConfig := ServiceConfig{AccessTokenTTL: time.Hour}
	for _, option := range options {
		option(&serviceConfig)
	}

	verification := NewVerificationManager(
		memoryAccounts{store}, memoryRegistrations{store}, memorySpent{store},
		signer, notifier,
		VerificationConfig{LinkBase: testConfirmURL, TimeToLive: 24 * time.Hour},
		manual, logger,
	)
	resets := NewResetManager(
		memoryAccounts{store}, memoryResetTokens{store}, memorySessions{store},
		hasher, notifier,
		ResetConfig{FrontendURL: testFrontendURL, TimeToLive: 24 * time.Hour},
		manual, logger,
	)
	guard := NewLoginGuard(memoryAttempts{store}, GuardConfig{Threshold: 5, Window: 24 * time.Hour}, manual)
	tracker := NewTracker(memoryDevices{store}, memorySessions{store}, manual)

	service := NewService(
		memoryAccounts{store}, hasher, verification, guard, tracker, tokens, notifier,
		serviceConfig, manual, logger,
	)

	return &harness{
		store:        store,
		clock:        manual,
		notifier:     notifier,
		signer:       signer,
		tokens:       tokens,
		hasher:       hasher,
		verification: verification,
		resets:       resets,
		guard:        guard,
		tracker:      tracker,
		service:      service,
	}
}

// seedAccount stores an account directly, bypassing registration.
func (h *harness) seedAccount(t *testing.T, email, handle, password string) *Account {
	t.Helper()

	hash, err := h.hasher.Hash(password)
	require.NoError(t, err)

	account := &Account{
		ID:           "acc-" + handle,
		Email:        email,
		Handle:       handle,
		PasswordHash: hash,
		CreatedAt:    h.clock.Now(),
		UpdatedAt:    h.clock.Now(),
	}
	require.NoError(t, memoryAccounts{h.store}.Create(context.Background(), account, &RegistrationInfo{
		Source:       constants.RegistrationSourceAPI,
		Status:       RegistrationPending,
		RegisteredAt: h.clock.Now(),
	}))
	return account
}

func (h *harness) account(t *testing.T, id string) *Account {
	t.Helper()
	account, err := memoryAccounts{h.store}.FindByID(context.Background(), id)
	require.NoError(t, err)
	return account
}

func (h *harness) registration(t *testing.T, id string) *RegistrationInfo {
	t.Helper()
	info, err := memoryRegistrations{h.store}.FindByAccountID(context.Background(), id)
	require.NoError(t, err)
	return info
}
