package auth

import (
	"crypto/rand"
	"io"
	"math/big"
	"strconv"
)

const (
	otpMin = 100000
	otpMax = 999999
)

var otpSpan = big.NewInt(otpMax - otpMin + 1)

// GenerateOTP returns a uniformly drawn 6-digit code in [100000, 999999].
func GenerateOTP() (string, error) {
	return generateOTP(rand.Reader)
}

func generateOTP(src io.Reader) (string, error) {
	n, err := rand.Int(src, otpSpan)
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(n.Int64()+otpMin, 10), nil
}

// HashOTP hashes a passcode for storage; the plaintext is never persisted.
func HashOTP(code string, cost int) (string, error) {
	return HashPassword(code, cost)
}

// CompareOTP reports whether code matches the stored hash.
func CompareOTP(hashed, code string) bool {
	if hashed == "" || code == "" {
		return false
	}
	return ComparePassword(hashed, code) == nil
}
