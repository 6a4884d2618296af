package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/skip2/go-qrcode"
)

const (
	// RecoveryAlphabet leaves out I, O, 0 and 1, which are easy to misread
	RecoveryAlphabet   = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	RecoveryCodeLength = 20
	RecoverySaltLength = 16
)

// GenerateRecoveryCode returns a fresh code drawn from crypto/rand
func GenerateRecoveryCode() (string, error) {
	return randomString(RecoveryCodeLength)
}

// GenerateRecoverySalt returns a fresh per-secret salt
func GenerateRecoverySalt() (string, error) {
	return randomString(RecoverySaltLength)
}

func randomString(length int) (string, error) {
	max := big.NewInt(int64(len(RecoveryAlphabet)))
	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to read random source: %w", err)
		}
		b.WriteByte(RecoveryAlphabet[n.Int64()])
	}
	return b.String(), nil
}

// NormalizeRecoveryCode upper-cases the candidate and strips the spaces and
// hyphens people add when copying a code by hand.
func NormalizeRecoveryCode(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	return strings.NewReplacer(" ", "", "-", "", "\t", "").Replace(code)
}

// HashRecoveryCode returns hex(sha256(salt + ":" + code)) for a normalized code
func HashRecoveryCode(salt, code string) string {
	sum := sha256.Sum256([]byte(salt + ":" + code))
	return hex.EncodeToString(sum[:])
}

// RecoveryCodeMatches compares a candidate against a stored salt and hash in constant time
func RecoveryCodeMatches(salt, storedHash, candidate string) bool {
	computed := HashRecoveryCode(salt, NormalizeRecoveryCode(candidate))
	return subtle.ConstantTimeCompare([]byte(computed), []byte(storedHash)) == 1
}

// FormatRecoveryCode groups a code in blocks of four for display
func FormatRecoveryCode(code string) string {
	var parts []string
	for len(code) > 4 {
		parts = append(parts, code[:4])
		code = code[4:]
	}
	parts = append(parts, code)
	return strings.Join(parts, "-")
}

// RecoveryCodeQR renders the code as a PNG data URL so the dashboard can
// offer it for scanning into a password manager.
func RecoveryCodeQR(code string) (string, error) {
	qr, err := qrcode.New(FormatRecoveryCode(code), qrcode.Medium)
	if err != nil {
		return "", fmt.Errorf("failed to create QR code: %w", err)
	}

	png, err := qr.PNG(200)
	if err != nil {
		return "", fmt.Errorf("failed to encode QR code: %w", err)
	}

	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
