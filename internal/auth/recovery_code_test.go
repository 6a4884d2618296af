package auth_test

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/soundbites/quizapi/internal/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateRecoveryCode_FormatAndAlphabet(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		code, err := auth.GenerateRecoveryCode()
		require.NoError(t, err)
		assert.Len(t, code, auth.RecoveryCodeLength)
		for _, r := range code {
			assert.True(t, strings.ContainsRune(auth.RecoveryAlphabet, r), "unexpected character %q", r)
		}
		assert.False(t, seen[code], "duplicate recovery code generated")
		seen[code] = true
	}
}

func TestGenerateRecoverySalt_Length(t *testing.T) {
	salt, err := auth.GenerateRecoverySalt()
	require.NoError(t, err)
	assert.Len(t, salt, auth.RecoverySaltLength)
}

func TestRecoveryCodeMatches(t *testing.T) {
	code := "ABCDEFGHJKLMNPQRSTUV"
	salt := "SALTSALTSALTSALT"
	stored := auth.HashRecoveryCode(salt, code)

	assert.True(t, auth.RecoveryCodeMatches(salt, stored, code))
	assert.True(t, auth.RecoveryCodeMatches(salt, stored, "abcd-efgh-jklm-npqr-stuv"), "normalized input should match")
	assert.True(t, auth.RecoveryCodeMatches(salt, stored, " ABCD EFGH JKLM NPQR STUV "))
	assert.False(t, auth.RecoveryCodeMatches(salt, stored, "ABCDEFGHJKLMNPQRSTUW"))
	assert.False(t, auth.RecoveryCodeMatches("OTHERSALTOTHERSA", stored, code), "salt must be part of the hash")
	assert.False(t, auth.RecoveryCodeMatches(salt, stored, ""))
}

func TestHashRecoveryCode_DoesNotContainPlaintext(t *testing.T) {
	code := "ABCDEFGHJKLMNPQRSTUV"
	hash := auth.HashRecoveryCode("SALTSALTSALTSALT", code)
	assert.Len(t, hash, 64)
	assert.NotContains(t, strings.ToUpper(hash), code)
}

func TestFormatRecoveryCode(t *testing.T) {
	assert.Equal(t, "ABCD-EFGH-JKLM-NPQR-STUV", auth.FormatRecoveryCode("ABCDEFGHJKLMNPQRSTUV"))
	assert.Equal(t, "ABC", auth.FormatRecoveryCode("ABC"))
}

func TestRecoveryCodeQR(t *testing.T) {
	dataURL, err := auth.RecoveryCodeQR("ABCDEFGHJKLMNPQRSTUV")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(dataURL, "data:image/png;base64,"))

	png, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(dataURL, "data:image/png;base64,"))
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG"), png[:4])
}

func TestFingerprint(t *testing.T) {
	a := auth.Fingerprint("203.0.113.10", "Mozilla/5.0")
	b := auth.Fingerprint("203.0.113.10", "Mozilla/5.0")
	c := auth.Fingerprint("203.0.113.11", "Mozilla/5.0")
	d := auth.Fingerprint("203.0.113.10", "curl/8.0")

	assert.Len(t, a, 32)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, a, d)
}
