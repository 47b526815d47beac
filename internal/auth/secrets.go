package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"io"
	"math/big"
	"time"
)

const (
	codeDigits     = 6
	resetTokenSize = 32
)

var codeSpace = big.NewInt(1_000_000)

// generateCode returns a zero-padded 6 digit code drawn uniformly from r.
func generateCode(r io.Reader) (string, error) {
	n, err := rand.Int(r, codeSpace)
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func generateResetToken(r io.Reader) (string, error) {
	b := make([]byte, resetTokenSize)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", fmt.Errorf("generate reset token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

var lacpaSeq = big.NewInt(100_000)

// generateLACPAID returns LACPA-YYYY-NNNNN for the year of now.
func generateLACPAID(r io.Reader, now time.Time) (string, error) {
	n, err := rand.Int(r, lacpaSeq)
	if err != nil {
		return "", fmt.Errorf("generate lacpa id: %w", err)
	}
	return fmt.Sprintf("LACPA-%d-%05d", now.Year(), n.Int64()), nil
}

func hashSecret(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func secretMatches(hash, plain string) bool {
	return subtle.ConstantTimeCompare([]byte(hash), []byte(hashSecret(plain))) == 1
}

func isNumericCode(s string) bool {
	if len(s) != codeDigits {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
