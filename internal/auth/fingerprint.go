package auth

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint derives the rate-limit key for a client from its IP address
// and User-Agent. Lockout is tracked per fingerprint, not per account.
func Fingerprint(ipAddress, userAgent string) string {
	hash := sha256.Sum256([]byte(ipAddress + ":" + userAgent))
	return hex.EncodeToString(hash[:])[:32]
}
