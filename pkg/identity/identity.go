// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package identity canonicalizes the user-supplied identifiers of an account.
//
// # Usage
//
// Emails and handles are compared for uniqueness and for lockout bookkeeping,
// so two spellings that a person would consider the same ("Reader@Example.com",
// "reader@example.com") must map to one stored value.
package identity

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// NormalizeEmail trims whitespace, applies NFC, and case-folds the address.
//
// The whole address is folded, not only the domain: providers that treat the
// local part as case-sensitive are rare enough that allowing two accounts for
// one person is the worse outcome.
func NormalizeEmail(email string) string {
	email = strings.TrimSpace(email)
	if email == "" {
		return ""
	}
	return cases.Fold().String(norm.NFC.String(email))
}

// NormalizeHandle trims whitespace and applies NFKC so that visually identical
// handles are stored identically. Casing is preserved for display; uniqueness
// is enforced case-insensitively by the database.
func NormalizeHandle(handle string) string {
	return norm.NFKC.String(strings.TrimSpace(handle))
}
