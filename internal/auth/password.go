package auth

import (
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

const BcryptCost = 12

const (
	minPasswordLength = 8
	maxPasswordLength = 128
)

// passwordSymbols is the punctuation set accepted by the strength validator.
const passwordSymbols = `!@#$%^&*()_+-=[]{};':"\|,.<>/?~` + "`"

// HashPassword produces a salted bcrypt hash. Two calls with the same input
// yield different strings. Inputs beyond bcrypt's 72-byte limit are
// truncated, so hashing never fails on length.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword(truncateForBcrypt(password), BcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword reports whether password matches the stored hash. Malformed
// hashes verify as false, never as an error.
func VerifyPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), truncateForBcrypt(password)) == nil
}

func truncateForBcrypt(password string) []byte {
	b := []byte(password)
	if len(b) > 72 {
		b = b[:72]
	}
	return b
}

// ValidatePasswordStrength checks length and character-class rules and
// returns the first failing rule's reason. Rules are checked in a fixed
// order: length, uppercase, lowercase, digit, symbol.
func ValidatePasswordStrength(password string) (bool, string) {
	length := len([]rune(password))
	if length < minPasswordLength {
		return false, "password must be at least 8 characters long"
	}
	if length > maxPasswordLength {
		return false, "password must be at most 128 characters long"
	}

	var hasUpper, hasLower, hasDigit, hasSymbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case strings.ContainsRune(passwordSymbols, r):
			hasSymbol = true
		}
	}

	if !hasUpper {
		return false, "password must contain at least one uppercase letter"
	}
	if !hasLower {
		return false, "password must contain at least one lowercase letter"
	}
	if !hasDigit {
		return false, "password must contain at least one digit"
	}
	if !hasSymbol {
		return false, "password must contain at least one special character"
	}

	return true, ""
}
