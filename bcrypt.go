package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// unusablePasswordPrefix marks a hash that no password can match
const unusablePasswordPrefix = "!"

// HashPassword will generate a password hash
func HashPassword(password string) (string, error) {
	return hashPasswordWithCost(password, passwordHashCost())
}

func hashPasswordWithCost(password string, cost int) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}

	h, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	return string(h), err
}

// ComparePasswordAndHash will validate the given cleartext
// password matches the hashed password
func ComparePasswordAndHash(password, hash string) error {
	if hash == "" || IsUnusablePassword(hash) {
		return ErrMismatchedHashAndPassword
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrMismatchedHashAndPassword
		}
		return err
	}
	return nil
}

// UnusablePassword returns a marker stored for identities that can only sign
// in through an external provider.
func UnusablePassword() string {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return unusablePasswordPrefix
	}
	return unusablePasswordPrefix + base64.RawURLEncoding.EncodeToString(buf)
}

// IsUnusablePassword reports whether hash is an unusable marker
func IsUnusablePassword(hash string) bool {
	return strings.HasPrefix(hash, unusablePasswordPrefix)
}

// BcryptHasher is a PasswordHasher with an explicit cost
type BcryptHasher struct {
	Cost int
}

func (b BcryptHasher) HashPassword(password string) (string, error) {
	cost := b.Cost
	if cost == 0 {
		cost = passwordHashCost()
	}
	return hashPasswordWithCost(password, cost)
}

func (b BcryptHasher) ComparePasswordAndHash(password, hash string) error {
	return ComparePasswordAndHash(password, hash)
}
