package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// GenerateAccountNumber generates an 8-digit account number starting with 01
func GenerateAccountNumber() string {
	num, _ := rand.Int(rand.Reader, big.NewInt(1000000))
	return fmt.Sprintf("01%06d", num.Int64())
}

// ValidateAccountNumber validates the account number format
func ValidateAccountNumber(accountNumber string) bool {
	return len(accountNumber) == 8 && strings.HasPrefix(accountNumber, "01")
}

// HashPIN hashes an account PIN using bcrypt
func HashPIN(pin string) (string, error) {
	if len(pin) < 4 {
		return "", fmt.Errorf("pin must be at least 4 digits")
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("pin must contain digits only")
		}
	}
	bytes, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPIN checks if a PIN matches a hash
func CheckPIN(pin, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(pin))
	return err == nil
}

// HashAPIKey returns the hex SHA-256 digest under which partner keys are stored.
func HashAPIKey(rawKey string) string {
	sum := sha256.Sum256([]byte(rawKey))
	return hex.EncodeToString(sum[:])
}
