// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher hashes and verifies account passwords.
//
// Services depend on this interface so tests can swap in a cheap cost.
type PasswordHasher interface {
	Hash(plainTextPassword string) (string, error)
	Verify(plainTextPassword, existingHash string) bool
}

// BcryptHasher implements [PasswordHasher] with bcrypt.
type BcryptHasher struct {
	// Cost is the bcrypt work factor. Zero means [bcrypt.DefaultCost].
	Cost int
}

// Hash implements [PasswordHasher].
func (hasher BcryptHasher) Hash(plainTextPassword string) (string, error) {
	cost := hasher.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}

	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(plainTextPassword), cost)
	if err != nil {
		return "", fmt.Errorf("sec: failed to hash password: %w", err)
	}
	return string(hashedBytes), nil
}

// Verify implements [PasswordHasher].
func (hasher BcryptHasher) Verify(plainTextPassword, existingHash string) bool {
	return CheckPasswordHash(plainTextPassword, existingHash)
}

// HashPassword hashes a plain-text password using bcrypt at the default cost.
func HashPassword(plainTextPassword string) (string, error) {
	return BcryptHasher{}.Hash(plainTextPassword)
}

// CheckPasswordHash compares a plain-text password with its hashed version.
func CheckPasswordHash(plainTextPassword, existingHash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(existingHash), []byte(plainTextPassword))
	return err == nil
}
