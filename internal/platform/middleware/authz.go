// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/AlgorithmxTech/DIY-Internal-Backend/internal/platform/apperr"
	"github.com/AlgorithmxTech/DIY-Internal-Backend/internal/platform/constants"
	"github.com/AlgorithmxTech/DIY-Internal-Backend/internal/platform/ctxutil"
	"github.com/AlgorithmxTech/DIY-Internal-Backend/internal/platform/dberr"
	"github.com/AlgorithmxTech/DIY-Internal-Backend/internal/platform/respond"
	"github.com/AlgorithmxTech/DIY-Internal-Backend/internal/platform/sec"
)

// TokenVerifier defines the interface needed to verify tokens in middleware.
type TokenVerifier interface {
	VerifyToken(tokenStr string) (*sec.AuthClaims, error)
}

// SessionToucher refreshes a session's activity and fails when the session
// is no longer active.
type SessionToucher interface {
	TouchSession(ctx context.Context, sessionID string) error
}

// Authenticate extracts and verifies the JWT from the Authorization header.
//
// # Flow
//  1. Check for 'Authorization: Bearer <token>' header.
//  2. If absent, request proceeds as anonymous.
//  3. If present, parse and verify the JWT via [TokenVerifier].
//  4. Inject [*sec.AuthClaims] into the request context for downstream use.
func Authenticate(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			authHeader := request.Header.Get(constants.HeaderAuthorization)

			// ── 1. Anonymous Access ───────────────────────────────────────────
			if authHeader == "" {
				next.ServeHTTP(writer, request)
				return
			}

			// ── 2. Format Validation ──────────────────────────────────────────
			scheme, tokenStr, found := strings.Cut(authHeader, " ")
			if !found || !strings.EqualFold(scheme, "bearer") || tokenStr == "" {
				respond.Error(writer, request, apperr.Unauthorized("Invalid authorization format"))
				return
			}

			// ── 3. Token Verification ─────────────────────────────────────────
			claims, err := verifier.VerifyToken(tokenStr)
			if err != nil {
				respond.Error(writer, request, apperr.Unauthorized("Invalid or expired token"))
				return
			}

			// ── 4. Context Injection ──────────────────────────────────────────
			ctx := ctxutil.WithAuthAccount(request.Context(), claims)
			next.ServeHTTP(writer, request.WithContext(ctx))
		})
	}
}

// RequireAuth blocks requests that are not authenticated.
//
// # Usage
//
// Must be registered in the router AFTER [Authenticate].
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if ctxutil.GetAuthAccount(request.Context()) == nil {
			respond.Error(writer, request, apperr.Unauthorized("Authentication required"))
			return
		}
		next.ServeHTTP(writer, request)
	})
}

// RequireActiveSession rejects tokens whose session was closed and records
// activity on the ones still open. It implies [RequireAuth].
func RequireActiveSession(sessions SessionToucher) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			claims := ctxutil.GetAuthAccount(request.Context())
			if claims == nil {
				respond.Error(writer, request, apperr.Unauthorized("Authentication required"))
				return
			}

			if err := sessions.TouchSession(request.Context(), claims.SessionID); err != nil {
				if errors.Is(err, dberr.ErrNotFound) {
					respond.Error(writer, request, apperr.Unauthorized("Session has ended"))
					return
				}
				// Activity tracking failures must not lock users out.
				ctxutil.GetLogger(request.Context()).WarnContext(request.Context(), "session_touch_failed",
					slog.String("session_id", claims.SessionID),
					slog.Any("error", err),
				)
			}

			next.ServeHTTP(writer, request)
		})
	}
}
