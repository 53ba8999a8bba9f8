package password

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// ErrUnknownHash is returned by Verify for hashes in no supported format.
var ErrUnknownHash = errors.New("unknown password hash format")

// HashBcrypt hashes password with bcrypt at the default cost.
func HashBcrypt(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyBcrypt compares a bcrypt hash with a plaintext password.
func VerifyBcrypt(hash, password string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return err == nil, err
}

// IsBcryptHash detects common bcrypt PHC prefixes.
func IsBcryptHash(hash string) bool {
	return strings.HasPrefix(hash, "$2a$") || strings.HasPrefix(hash, "$2b$") || strings.HasPrefix(hash, "$2y$")
}

// Verify checks password against a bcrypt or argon2id hash.
func Verify(hash, password string) (bool, error) {
	switch {
	case IsBcryptHash(hash):
		return VerifyBcrypt(hash, password)
	case strings.HasPrefix(hash, "$argon2id$"):
		return VerifyArgon2id(hash, password)
	default:
		return false, ErrUnknownHash
	}
}
