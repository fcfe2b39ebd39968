// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec

import (
	"crypto/hmac"
	"crypto/sha256"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/AlgorithmxTech/DIY-Internal-Backend/pkg/clock"
	"github.com/AlgorithmxTech/DIY-Internal-Backend/pkg/uuid"
)

// MinSecretLength is the shortest secret accepted by [NewSigner].
const MinSecretLength = 32

// Signed token failures. Callers map all three to one client-facing error,
// but keep them apart for logs and metrics.
var (
	ErrBadSignature = errors.New("sec: token signature mismatch")
	ErrExpired      = errors.New("sec: token expired")
	ErrMalformed    = errors.New("sec: token malformed")
)

// SignedPayload is the data carried inside a stateless signed token.
type SignedPayload struct {
	AccountID string
	Email     string
	// TokenID is unique per issued token. Assigned by [Signer.Issue].
	TokenID  string
	IssuedAt time.Time
}

type signedClaims struct {
	jwt.RegisteredClaims

	Email string `json:"eml"`
}

/*
Signer issues and validates stateless HS256 tokens for a single purpose.

The signing key is derived from the shared secret and the purpose name, so a
token issued for one purpose never validates under another.
*/
type Signer struct {
	key     []byte
	purpose string
	clock   clock.Clock
}

/*
NewSigner derives a purpose-bound key from secret.

Parameters:
  - secret: string (At least [MinSecretLength] bytes)
  - purpose: string (Salt separating token families, e.g. "email-verification")
  - clk: clock.Clock (Time source for issuance and expiry)

Returns:
  - *Signer: Ready-to-use signer
  - error: If the secret is too short or purpose is empty
*/
func NewSigner(secret, purpose string, clk clock.Clock) (*Signer, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("sec: signing secret must be at least %d bytes", MinSecretLength)
	}
	if purpose == "" {
		return nil, errors.New("sec: signer purpose is required")
	}
	if clk == nil {
		clk = clock.System()
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(purpose))

	return &Signer{key: mac.Sum(nil), purpose: purpose, clock: clk}, nil
}

// Issue signs payload. AccountID is required; TokenID and IssuedAt are assigned.
func (signer *Signer) Issue(payload SignedPayload, timeToLive time.Duration) (string, error) {
	if payload.AccountID == "" {
		return "", errors.New("sec: signed payload requires an account id")
	}

	issuedAt := signer.clock.Now()
	claims := signedClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New(),
			Subject:   payload.AccountID,
			Audience:  jwt.ClaimStrings{signer.purpose},
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(timeToLive)),
		},
		Email: payload.Email,
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(signer.key)
	if err != nil {
		return "", fmt.Errorf("sec: failed to sign token: %w", err)
	}
	return token, nil
}

/*
Validate checks the signature and age of token.

Age is measured from the issuance time against maxAge, using the signer's
clock. An expired token returns [ErrExpired] together with its decoded
payload so callers can attribute the attempt to an account.

Returns:
  - *SignedPayload: The decoded payload (also set when err is [ErrExpired])
  - error: [ErrBadSignature], [ErrExpired] or [ErrMalformed]
*/
func (signer *Signer) Validate(token string, maxAge time.Duration) (*SignedPayload, error) {
	claims := &signedClaims{}

	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return signer.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return nil, ErrBadSignature
	default:
		return nil, ErrMalformed
	}

	if claims.Subject == "" || claims.ID == "" || claims.IssuedAt == nil {
		return nil, ErrMalformed
	}
	if !slices.Contains(claims.Audience, signer.purpose) {
		return nil, ErrBadSignature
	}

	payload := &SignedPayload{
		AccountID: claims.Subject,
		Email:     claims.Email,
		TokenID:   claims.ID,
		IssuedAt:  claims.IssuedAt.Time,
	}

	if signer.clock.Now().Sub(payload.IssuedAt) > maxAge {
		return payload, ErrExpired
	}
	return payload, nil
}
