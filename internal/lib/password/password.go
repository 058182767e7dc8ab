package password

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

var ErrEmptyPassword = errors.New("password must not be empty")

// Hash returns a salted bcrypt hash of plaintext at the given cost.
func Hash(plaintext string, cost int) ([]byte, error) {
	if plaintext == "" {
		return nil, ErrEmptyPassword
	}

	return bcrypt.GenerateFromPassword([]byte(plaintext), cost)
}

// Verify reports whether plaintext matches hash. A malformed hash is a mismatch.
func Verify(plaintext string, hash []byte) bool {
	return bcrypt.CompareHashAndPassword(hash, []byte(plaintext)) == nil
}
