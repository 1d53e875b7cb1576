package crypto

import (
	"crypto/sha256"
	"encoding/base64"

	"golang.org/x/crypto/bcrypt"
)

// bcrypt only reads the first 72 bytes; longer inputs are pre-hashed so every
// byte of the password contributes.
const bcryptMaxInput = 72

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword(prepare(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword returns nil when password matches hash. A malformed hash is
// reported as a mismatch.
func CheckPassword(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), prepare(password))
}

func VerifyPassword(password, hash string) bool {
	if hash == "" {
		return false
	}
	return CheckPassword(hash, password) == nil
}

func prepare(password string) []byte {
	if len(password) <= bcryptMaxInput {
		return []byte(password)
	}
	sum := sha256.Sum256([]byte(password))
	return []byte(base64.StdEncoding.EncodeToString(sum[:]))
}
