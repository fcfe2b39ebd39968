// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

// # Field Identifiers

// Field names used in request payloads, validation details and responses.
const (
	FieldEmail           = "email"
	FieldHandle          = "handle"
	FieldPhone           = "phone"
	FieldPassword        = "password"
	FieldPasswordConfirm = "password_confirm"
	FieldToken           = "token"
	FieldCurrentPassword = "current_password"
	FieldNewPassword     = "new_password"
	FieldConfirmPassword = "confirm_password"
	FieldAccessToken     = "access_token"
	FieldTokenType       = "token_type"
	FieldExpiresIn       = "expires_in"
	FieldSessionID       = "session_id"
	FieldAccount         = "account"
	FieldMessage         = "message"
	FieldEmailStatus     = "email_status"
	FieldDebugInfo       = "debug_info"
)

// # Profile Constraints

const (
	HandleMinLength = 3
	HandleMaxLength = 30
	EmailMaxLength  = 254
	PhoneMaxLength  = 15
)

// # Storage Constraint Names

// Unique constraints whose violation maps to a specific client error.
const (
	ConstraintAccountEmail  = "account_email_key"
	ConstraintAccountHandle = "account_handle_key"
	ConstraintResetToken    = "passwordresettoken_tokenhash_key"
)

// decoyPassword seeds the hash verified for unknown emails during login.
const decoyPassword = "decoy-password-for-unknown-accounts"
