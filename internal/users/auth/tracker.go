// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"

	"github.com/AlgorithmxTech/DIY-Internal-Backend/pkg/clock"
	"github.com/AlgorithmxTech/DIY-Internal-Backend/pkg/device"
	"github.com/AlgorithmxTech/DIY-Internal-Backend/pkg/uuid"
)

// Tracker records the sessions and device classes of each account.
//
// Tracker satisfies middleware.SessionToucher, so protected routes can refuse
// tokens whose session has been closed.
type Tracker struct {
	devices  DeviceRepository
	sessions SessionRepository
	clock    clock.Clock
}

// NewTracker constructs a [Tracker].
func NewTracker(devices DeviceRepository, sessions SessionRepository, clk clock.Clock) *Tracker {
	return &Tracker{devices: devices, sessions: sessions, clock: clk}
}

/*
RecordDevice notes a sign-in from the device class described by fingerprint.

Parameters:
  - context: context.Context
  - accountID: string
  - fingerprint: device.Fingerprint
  - ipAddress: string

Returns:
  - *Device: The stored device
  - bool: True when this fingerprint was not seen among the active devices before
  - error: Storage failures
*/
func (tracker *Tracker) RecordDevice(context context.Context, accountID string, fingerprint device.Fingerprint, ipAddress string) (*Device, bool, error) {
	now := tracker.clock.Now()
	record := &Device{
		ID:        uuid.New(),
		AccountID: accountID,
		Print:     fingerprint,
		IPAddress: ipAddress,
		FirstUsed: now,
		LastUsed:  now,
		IsActive:  true,
	}

	created, err := tracker.devices.Upsert(context, record)
	if err != nil {
		return nil, false, err
	}
	return record, created, nil
}

// RecordSession opens a new session for accountID.
func (tracker *Tracker) RecordSession(context context.Context, accountID, ipAddress, userAgent string) (*Session, error) {
	now := tracker.clock.Now()
	session := &Session{
		ID:           uuid.New(),
		AccountID:    accountID,
		IPAddress:    ipAddress,
		UserAgent:    userAgent,
		LastActivity: now,
		IsActive:     true,
		CreatedAt:    now,
	}

	if err := tracker.sessions.Create(context, session); err != nil {
		return nil, err
	}
	return session, nil
}

// TouchSession stamps activity. A closed or unknown session yields NotFound.
func (tracker *Tracker) TouchSession(context context.Context, sessionID string) error {
	return tracker.sessions.Touch(context, sessionID, tracker.clock.Now())
}

// CloseSession deactivates one session. Idempotent.
func (tracker *Tracker) CloseSession(context context.Context, sessionID string) error {
	return tracker.sessions.Close(context, sessionID)
}

// CloseAllSessions deactivates every session of the account.
func (tracker *Tracker) CloseAllSessions(context context.Context, accountID string) (int64, error) {
	return tracker.sessions.CloseAll(context, accountID)
}

// CloseOtherSessions deactivates every session of the account except keepID.
func (tracker *Tracker) CloseOtherSessions(context context.Context, accountID, keepID string) (int64, error) {
	return tracker.sessions.CloseOthers(context, accountID, keepID)
}

// FindSession returns the session, active or closed.
func (tracker *Tracker) FindSession(context context.Context, sessionID string) (*Session, error) {
	return tracker.sessions.FindByID(context, sessionID)
}

// ListSessions returns the account's active sessions, most recent activity first.
func (tracker *Tracker) ListSessions(context context.Context, accountID string) ([]Session, error) {
	return tracker.sessions.ListActive(context, accountID)
}

// ListDevices returns every device the account has signed in from.
func (tracker *Tracker) ListDevices(context context.Context, accountID string) ([]Device, error) {
	return tracker.devices.ListByAccount(context, accountID)
}
