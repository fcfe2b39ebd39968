// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec_test

import (
	"crypto/rand"
	"crypto/rsa"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/AlgorithmxTech/DIY-Internal-Backend/internal/platform/sec"
	"github.com/AlgorithmxTech/DIY-Internal-Backend/pkg/clock"
)

const testSecret = "0123456789abcdef0123456789abcdef"

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestGenerateSecureToken(t *testing.T) {
	first, err := sec.GenerateSecureToken(32)
	require.NoError(t, err)
	second, err := sec.GenerateSecureToken(32)
	require.NoError(t, err)

	assert.Len(t, first, 64)
	assert.NotEqual(t, first, second)

	_, err = sec.GenerateSecureToken(0)
	assert.Error(t, err)
}

func TestHashToken(t *testing.T) {
	digest := sec.HashToken("abc")

	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", digest)
	assert.Equal(t, digest, sec.HashToken("abc"))
	assert.NotEqual(t, digest, sec.HashToken("abd"))
}

func TestBcryptHasher(t *testing.T) {
	hasher := sec.BcryptHasher{Cost: bcrypt.MinCost}

	hash, err := hasher.Hash("Sup3rSecret")
	require.NoError(t, err)

	assert.True(t, hasher.Verify("Sup3rSecret", hash))
	assert.False(t, hasher.Verify("sup3rsecret", hash))
}

/*
TestSigner_RoundTrip verifies that a fresh token decodes to the issued payload.
*/
func TestSigner_RoundTrip(t *testing.T) {
	clk := clock.NewManual(epoch)
	signer, err := sec.NewSigner(testSecret, "email-verification", clk)
	require.NoError(t, err)

	token, err := signer.Issue(sec.SignedPayload{AccountID: "acc-1", Email: "reader@example.com"}, time.Hour)
	require.NoError(t, err)

	clk.Advance(59 * time.Minute)
	payload, err := signer.Validate(token, time.Hour)
	require.NoError(t, err)

	assert.Equal(t, "acc-1", payload.AccountID)
	assert.Equal(t, "reader@example.com", payload.Email)
	assert.NotEmpty(t, payload.TokenID)
	assert.True(t, payload.IssuedAt.Equal(epoch))
}

/*
TestSigner_Expired returns the payload alongside ErrExpired.
*/
func TestSigner_Expired(t *testing.T) {
	clk := clock.NewManual(epoch)
	signer, err := sec.NewSigner(testSecret, "email-verification", clk)
	require.NoError(t, err)

	token, err := signer.Issue(sec.SignedPayload{AccountID: "acc-1", Email: "reader@example.com"}, 24*time.Hour)
	require.NoError(t, err)

	clk.Advance(24*time.Hour + time.Second)
	payload, err := signer.Validate(token, 24*time.Hour)

	assert.ErrorIs(t, err, sec.ErrExpired)
	require.NotNil(t, payload)
	assert.Equal(t, "acc-1", payload.AccountID)
}

func TestSigner_Tampered(t *testing.T) {
	signer, err := sec.NewSigner(testSecret, "email-verification", clock.NewManual(epoch))
	require.NoError(t, err)

	token, err := signer.Issue(sec.SignedPayload{AccountID: "acc-1"}, time.Hour)
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	forged := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))

	_, err = signer.Validate(forged, time.Hour)
	assert.ErrorIs(t, err, sec.ErrBadSignature)
}

func TestSigner_PurposeIsolation(t *testing.T) {
	clk := clock.NewManual(epoch)
	verification, err := sec.NewSigner(testSecret, "email-verification", clk)
	require.NoError(t, err)
	other, err := sec.NewSigner(testSecret, "something-else", clk)
	require.NoError(t, err)

	token, err := other.Issue(sec.SignedPayload{AccountID: "acc-1"}, time.Hour)
	require.NoError(t, err)

	_, err = verification.Validate(token, time.Hour)
	assert.ErrorIs(t, err, sec.ErrBadSignature)
}

func TestSigner_Malformed(t *testing.T) {
	signer, err := sec.NewSigner(testSecret, "email-verification", clock.NewManual(epoch))
	require.NoError(t, err)

	for _, token := range []string{"", "not-a-token", "a.b.c"} {
		_, err := signer.Validate(token, time.Hour)
		assert.ErrorIs(t, err, sec.ErrMalformed, token)
	}
}

func TestNewSigner_RejectsShortSecret(t *testing.T) {
	_, err := sec.NewSigner("short", "email-verification", nil)
	assert.Error(t, err)
}

/*
TestTokenService_AccessToken checks issuance, session binding and expiry.
*/
func TestTokenService_AccessToken(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	clk := clock.NewManual(epoch)
	service := sec.NewTokenServiceFromKey(key, &key.PublicKey, "accounts-api", clk)

	token, expiresAt, err := service.GenerateAccessToken("acc-1", "reader", "sess-1", time.Hour)
	require.NoError(t, err)
	assert.True(t, expiresAt.Equal(epoch.Add(time.Hour)))

	claims, err := service.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, "acc-1", claims.AccountID)
	assert.Equal(t, "sess-1", claims.SessionID)

	clk.Advance(2 * time.Hour)
	_, err = service.VerifyToken(token)
	assert.Error(t, err)
}
