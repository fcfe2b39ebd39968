// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package account

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/AlgorithmxTech/DIY-Internal-Backend/internal/platform/apperr"
	"github.com/AlgorithmxTech/DIY-Internal-Backend/internal/platform/dberr"
	"github.com/AlgorithmxTech/DIY-Internal-Backend/internal/users/auth"
	"github.com/AlgorithmxTech/DIY-Internal-Backend/pkg/uuid"
)

const (
	chromeOnWindows = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	safariOnIPhone  = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"
)

var baseTime = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// memoryDirectory backs both [ProfileRepository] and [SessionDirectory].
type memoryDirectory struct {
	mu        sync.Mutex
	accounts  map[string]*auth.Account
	sessions  map[string]*auth.Session
	devices   map[string][]auth.Device
	updateErr error
}

func newMemoryDirectory() *memoryDirectory {
	return &memoryDirectory{
		accounts: make(map[string]*auth.Account),
		sessions: make(map[string]*auth.Session),
		devices:  make(map[string][]auth.Device),
	}
}

func (m *memoryDirectory) addAccount(handle string) *auth.Account {
	m.mu.Lock()
	defer m.mu.Unlock()

	account := &auth.Account{
		ID:        uuid.New(),
		Email:     strings.ToLower(handle) + "@example.com",
		Handle:    handle,
		CreatedAt: baseTime,
		UpdatedAt: baseTime,
	}
	m.accounts[account.ID] = account
	return account
}

func (m *memoryDirectory) addSession(accountID, userAgent string, lastActivity time.Time) *auth.Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	session := &auth.Session{
		ID:           uuid.New(),
		AccountID:    accountID,
		IPAddress:    "203.0.113.7",
		UserAgent:    userAgent,
		LastActivity: lastActivity,
		IsActive:     true,
		CreatedAt:    lastActivity,
	}
	m.sessions[session.ID] = session
	return session
}

func (m *memoryDirectory) session(id string) auth.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.sessions[id]
}

// # ProfileRepository

func (m *memoryDirectory) FindByID(_ context.Context, id string) (*auth.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	account, ok := m.accounts[id]
	if !ok {
		return nil, apperr.NotFound("Account")
	}
	clone := *account
	return &clone, nil
}

func (m *memoryDirectory) FindByHandle(_ context.Context, handle string) (*auth.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, account := range m.accounts {
		if strings.EqualFold(account.Handle, handle) {
			clone := *account
			return &clone, nil
		}
	}
	return nil, apperr.NotFound("Account")
}

func (m *memoryDirectory) UpdateProfile(_ context.Context, account *auth.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.updateErr != nil {
		return m.updateErr
	}
	if _, ok := m.accounts[account.ID]; !ok {
		return apperr.NotFound("Account")
	}
	clone := *account
	m.accounts[account.ID] = &clone
	return nil
}

// # SessionDirectory

func (m *memoryDirectory) ListSessions(_ context.Context, accountID string) ([]auth.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sessions := make([]auth.Session, 0)
	for _, session := range m.sessions {
		if session.AccountID == accountID && session.IsActive {
			sessions = append(sessions, *session)
		}
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].LastActivity.After(sessions[j].LastActivity)
	})
	return sessions, nil
}

func (m *memoryDirectory) FindSession(_ context.Context, sessionID string) (*auth.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[sessionID]
	if !ok {
		return nil, apperr.NotFound("Session")
	}
	clone := *session
	return &clone, nil
}

func (m *memoryDirectory) CloseSession(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if session, ok := m.sessions[sessionID]; ok {
		session.IsActive = false
	}
	return nil
}

func (m *memoryDirectory) CloseOtherSessions(_ context.Context, accountID, keepID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var closed int64
	for _, session := range m.sessions {
		if session.AccountID == accountID && session.ID != keepID && session.IsActive {
			session.IsActive = false
			closed++
		}
	}
	return closed, nil
}

func (m *memoryDirectory) ListDevices(_ context.Context, accountID string) ([]auth.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append(make([]auth.Device, 0), m.devices[accountID]...), nil
}

// TouchSession satisfies middleware.SessionToucher for router tests.
func (m *memoryDirectory) TouchSession(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[sessionID]
	if !ok || !session.IsActive {
		return apperr.NotFound("Session")
	}
	return nil
}

func uniqueHandleViolation() error {
	return dberr.Wrap(&pgconn.PgError{
		Code:           pgerrcode.UniqueViolation,
		ConstraintName: auth.ConstraintAccountHandle,
	}, "postgres_account_repo_update_profile")
}

func newTestService(t *testing.T) (*Service, *memoryDirectory) {
	t.Helper()

	directory := newMemoryDirectory()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(directory, directory, logger), directory
}
