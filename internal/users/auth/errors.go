// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"net/http"

	"github.com/AlgorithmxTech/DIY-Internal-Backend/internal/platform/apperr"
)

// Error codes returned by the credential flows.
const (
	CodePasswordMismatch      = "PASSWORD_MISMATCH"
	CodeEmailTaken            = "EMAIL_TAKEN"
	CodeHandleTaken           = "HANDLE_TAKEN"
	CodeInvalidOrExpiredToken = "INVALID_OR_EXPIRED_TOKEN"
	CodeAccountNotFound       = "ACCOUNT_NOT_FOUND"
	CodeWrongCurrentPassword  = "WRONG_CURRENT_PASSWORD"
	CodeSameAsOld             = "SAME_AS_OLD"
	CodeWeakPassword          = "WEAK_PASSWORD"
	CodeAuditWriteFailed      = "AUDIT_WRITE_FAILED"
	CodeInvalidCredentials    = "INVALID_CREDENTIALS"
	CodeTooManyAttempts       = "TOO_MANY_ATTEMPTS"
)

// Sentinels for [errors.Is]. Matching is by code, so a copy carrying details
// or a cause still matches its sentinel.
var (
	ErrPasswordMismatch = apperr.New(CodePasswordMismatch, "Passwords don't match", http.StatusBadRequest)

	ErrEmailTaken = apperr.New(CodeEmailTaken, "Email already registered", http.StatusConflict,
		apperr.FieldError{Field: FieldEmail, Message: "Email already registered"})

	ErrHandleTaken = apperr.New(CodeHandleTaken, "Handle already taken", http.StatusConflict,
		apperr.FieldError{Field: FieldHandle, Message: "Handle already taken"})

	ErrInvalidOrExpiredToken = apperr.New(CodeInvalidOrExpiredToken, "Invalid or expired token", http.StatusBadRequest)

	ErrAccountNotFound = apperr.New(CodeAccountNotFound, "Account not found", http.StatusNotFound)

	ErrWrongCurrentPassword = apperr.New(CodeWrongCurrentPassword, "Current password is incorrect", http.StatusBadRequest,
		apperr.FieldError{Field: FieldCurrentPassword, Message: "Current password is incorrect"})

	ErrSameAsOld = apperr.New(CodeSameAsOld, "New password must be different from current password", http.StatusBadRequest,
		apperr.FieldError{Field: FieldNewPassword, Message: "New password must be different from current password"})

	ErrWeakPassword = apperr.New(CodeWeakPassword, "Password does not meet strength requirements", http.StatusBadRequest)

	ErrAuditWriteFailed = apperr.New(CodeAuditWriteFailed, "Failed to record login attempt", http.StatusInternalServerError)

	ErrInvalidCredentials = apperr.New(CodeInvalidCredentials, "Invalid email or password", http.StatusUnauthorized)

	ErrTooManyAttempts = apperr.New(CodeTooManyAttempts, "Too many failed attempts. Please try again later.", http.StatusUnauthorized)
)

// passwordMismatch attributes [ErrPasswordMismatch] to the confirmation field.
func passwordMismatch(field string) error {
	return ErrPasswordMismatch.WithDetails(apperr.FieldError{Field: field, Message: "Passwords don't match"})
}

// weakPassword carries every failed strength rule as a field detail.
func weakPassword(details []apperr.FieldError) error {
	return ErrWeakPassword.WithDetails(details...)
}

// auditWriteFailed keeps the storage error for server logs.
func auditWriteFailed(cause error) error {
	return ErrAuditWriteFailed.WithCause(cause)
}
