// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlgorithmxTech/DIY-Internal-Backend/internal/platform/dberr"
	"github.com/AlgorithmxTech/DIY-Internal-Backend/internal/platform/notify"
	"github.com/AlgorithmxTech/DIY-Internal-Backend/internal/platform/sec"
)

// lastResetToken extracts the raw token from the most recent reset link.
func lastResetToken(t *testing.T, h *harness) string {
	t.Helper()

	sent := h.notifier.byTemplate(notify.TemplatePasswordReset)
	require.NotEmpty(t, sent)

	link, ok := sent[len(sent)-1].Data["reset_link"].(string)
	require.True(t, ok)

	prefix := testFrontendURL + "/reset-password/"
	require.True(t, strings.HasPrefix(link, prefix), link)
	return strings.TrimPrefix(link, prefix)
}

func TestResetManager_RequestReset(t *testing.T) {
	h := newHarness(t)
	account := h.seedAccount(t, "reader@example.com", "reader", "Abc123!!")

	require.NoError(t, h.resets.RequestReset(context.Background(), "  Reader@Example.com "))

	token := lastResetToken(t, h)
	assert.Len(t, token, 64)

	stored, err := memoryResetTokens{h.store}.FindByHash(context.Background(), sec.HashToken(token))
	require.NoError(t, err)
	assert.Equal(t, account.ID, stored.AccountID)
	assert.Equal(t, h.clock.Now().Add(24*time.Hour), stored.ExpiresAt)
	assert.NotEqual(t, token, stored.TokenHash, "only the digest is stored")
}

func TestResetManager_RequestReset_UnknownEmail(t *testing.T) {
	h := newHarness(t)
	h.seedAccount(t, "reader@example.com", "reader", "Abc123!!")
	_, writesBefore := h.store.counters()

	require.NoError(t, h.resets.RequestReset(context.Background(), "nobody@example.com"))

	_, writesAfter := h.store.counters()
	assert.Equal(t, writesBefore, writesAfter)
	assert.Empty(t, h.notifier.byTemplate(notify.TemplatePasswordReset))
}

func TestResetManager_RequestReset_DeliveryFailureIsSilent(t *testing.T) {
	h := newHarness(t)
	h.notifier.failWith = "smtp relay rejected the message"
	h.seedAccount(t, "reader@example.com", "reader", "Abc123!!")

	assert.NoError(t, h.resets.RequestReset(context.Background(), "reader@example.com"))
	assert.Len(t, h.store.resetTokens, 1)
}

func TestResetManager_SecondRequestReplacesFirst(t *testing.T) {
	h := newHarness(t)
	h.seedAccount(t, "reader@example.com", "reader", "Abc123!!")

	require.NoError(t, h.resets.RequestReset(context.Background(), "reader@example.com"))
	first := lastResetToken(t, h)
	require.NoError(t, h.resets.RequestReset(context.Background(), "reader@example.com"))
	second := lastResetToken(t, h)

	require.NotEqual(t, first, second)
	assert.Len(t, h.store.resetTokens, 1)

	err := h.resets.Redeem(context.Background(), first, "Newpass123", "Newpass123")
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)

	assert.NoError(t, h.resets.Redeem(context.Background(), second, "Newpass123", "Newpass123"))
}

func TestResetManager_CollisionIsRetried(t *testing.T) {
	h := newHarness(t)
	h.seedAccount(t, "reader@example.com", "reader", "Abc123!!")
	other := h.seedAccount(t, "other@example.com", "other", "Abc123!!")

	require.NoError(t, memoryResetTokens{h.store}.Replace(context.Background(), &PasswordResetToken{
		ID:        "existing",
		AccountID: other.ID,
		TokenHash: sec.HashToken("colliding"),
		CreatedAt: h.clock.Now(),
		ExpiresAt: h.clock.Now().Add(time.Hour),
	}))

	candidates := []string{"colliding", "fresh"}
	h.resets.newToken = func(int) (string, error) {
		next := candidates[0]
		candidates = candidates[1:]
		return next, nil
	}

	require.NoError(t, h.resets.RequestReset(context.Background(), "reader@example.com"))
	assert.Equal(t, "fresh", lastResetToken(t, h))
	assert.Empty(t, candidates)
}

func TestResetManager_CollisionRetriesAreBounded(t *testing.T) {
	h := newHarness(t)
	h.seedAccount(t, "reader@example.com", "reader", "Abc123!!")
	other := h.seedAccount(t, "other@example.com", "other", "Abc123!!")

	require.NoError(t, memoryResetTokens{h.store}.Replace(context.Background(), &PasswordResetToken{
		ID:        "existing",
		AccountID: other.ID,
		TokenHash: sec.HashToken("colliding"),
		CreatedAt: h.clock.Now(),
		ExpiresAt: h.clock.Now().Add(time.Hour),
	}))

	generated := 0
	h.resets.newToken = func(int) (string, error) {
		generated++
		return "colliding", nil
	}

	err := h.resets.RequestReset(context.Background(), "reader@example.com")
	require.Error(t, err)
	assert.True(t, dberr.IsUniqueViolation(err))
	assert.Equal(t, 3, generated)
	assert.Empty(t, h.notifier.byTemplate(notify.TemplatePasswordReset))
}

func TestResetManager_Redeem(t *testing.T) {
	h := newHarness(t)
	account := h.seedAccount(t, "reader@example.com", "reader", "Abc123!!")

	_, err := h.tracker.RecordSession(context.Background(), account.ID, "10.0.0.1", "ua-1")
	require.NoError(t, err)
	_, err = h.tracker.RecordSession(context.Background(), account.ID, "10.0.0.2", "ua-2")
	require.NoError(t, err)

	require.NoError(t, h.resets.RequestReset(context.Background(), "reader@example.com"))
	token := lastResetToken(t, h)

	require.NoError(t, h.resets.Redeem(context.Background(), token, "Newpass123", "Newpass123"))

	updated := h.account(t, account.ID)
	assert.True(t, h.hasher.Verify("Newpass123", updated.PasswordHash))
	assert.False(t, h.hasher.Verify("Abc123!!", updated.PasswordHash))
	assert.Empty(t, h.store.resetTokens)
	assert.Zero(t, h.store.activeSessions(account.ID))

	// Single use
	err = h.resets.Redeem(context.Background(), token, "Other1234", "Other1234")
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)
}

func TestResetManager_Redeem_MismatchTouchesNothing(t *testing.T) {
	h := newHarness(t)
	callsBefore, _ := h.store.counters()

	err := h.resets.Redeem(context.Background(), "whatever", "Newpass123", "Newpass124")
	assert.ErrorIs(t, err, ErrPasswordMismatch)

	callsAfter, _ := h.store.counters()
	assert.Equal(t, callsBefore, callsAfter)
}

func TestResetManager_Redeem_Expired(t *testing.T) {
	h := newHarness(t)
	h.seedAccount(t, "reader@example.com", "reader", "Abc123!!")

	require.NoError(t, h.resets.RequestReset(context.Background(), "reader@example.com"))
	token := lastResetToken(t, h)

	h.clock.Advance(24 * time.Hour)

	err := h.resets.Redeem(context.Background(), token, "Newpass123", "Newpass123")
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)
}

func TestResetManager_Redeem_UnknownToken(t *testing.T) {
	h := newHarness(t)

	err := h.resets.Redeem(context.Background(), "deadbeef", "Newpass123", "Newpass123")
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)
}

// supersedingTokens issues a fresh reset for the same account right after a
// lookup, the way a concurrent forgot-password request would.
type supersedingTokens struct {
	ResetTokenRepository
	afterLookup func()
}

func (tokens supersedingTokens) FindByHash(context context.Context, tokenHash string) (*PasswordResetToken, error) {
	found, err := tokens.ResetTokenRepository.FindByHash(context, tokenHash)
	if tokens.afterLookup != nil {
		tokens.afterLookup()
	}
	return found, err
}

func TestResetManager_Redeem_SupersededDuringRedeem(t *testing.T) {
	h := newHarness(t)
	account := h.seedAccount(t, "reader@example.com", "reader", "Abc123!!")

	require.NoError(t, h.resets.RequestReset(context.Background(), "reader@example.com"))
	first := lastResetToken(t, h)

	h.resets.tokens = supersedingTokens{
		ResetTokenRepository: memoryResetTokens{h.store},
		afterLookup: func() {
			require.NoError(t, memoryResetTokens{h.store}.Replace(context.Background(), &PasswordResetToken{
				ID:        "newer",
				AccountID: account.ID,
				TokenHash: sec.HashToken("newer-token"),
				CreatedAt: h.clock.Now(),
				ExpiresAt: h.clock.Now().Add(time.Hour),
			}))
		},
	}

	err := h.resets.Redeem(context.Background(), first, "Attacker123", "Attacker123")
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)

	unchanged := h.account(t, account.ID)
	assert.True(t, h.hasher.Verify("Abc123!!", unchanged.PasswordHash))
	assert.Len(t, h.store.resetTokens, 1, "the newer token stays live")
}

func TestResetManager_Redeem_ConcurrentRedeemsSucceedOnce(t *testing.T) {
	h := newHarness(t)
	h.seedAccount(t, "reader@example.com", "reader", "Abc123!!")

	require.NoError(t, h.resets.RequestReset(context.Background(), "reader@example.com"))
	token := lastResetToken(t, h)

	// Both callers pass the lookup before either redeems.
	var lookups sync.WaitGroup
	lookups.Add(2)
	h.resets.tokens = supersedingTokens{
		ResetTokenRepository: memoryResetTokens{h.store},
		afterLookup: func() {
			lookups.Done()
			lookups.Wait()
		},
	}

	results := make(chan error, 2)
	for range 2 {
		go func() {
			results <- h.resets.Redeem(context.Background(), token, "Newpass123", "Newpass123")
		}()
	}

	var succeeded, rejected int
	for range 2 {
		if err := <-results; err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)
			rejected++
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, rejected)
}
