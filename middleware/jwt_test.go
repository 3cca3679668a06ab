package middleware

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-jwt-secret-32bytes-padded!!"

func TestParseToken_AccountToken(t *testing.T) {
	tok, err := GenerateToken(99, 0, testSecret, time.Hour)
	require.NoError(t, err)

	claims, err := ParseToken(tok, testSecret)
	require.NoError(t, err)
	assert.Equal(t, int64(99), claims.AccountID)
	assert.Zero(t, claims.CharID)
}

func TestParseToken_SessionToken(t *testing.T) {
	tok, err := GenerateToken(3, 17, testSecret, time.Hour)
	require.NoError(t, err)

	claims, err := ParseToken(tok, testSecret)
	require.NoError(t, err)
	assert.Equal(t, int64(3), claims.AccountID)
	assert.Equal(t, int64(17), claims.CharID)
}

func TestParseToken_Rejects(t *testing.T) {
	good, err := GenerateToken(1, 0, testSecret, time.Hour)
	require.NoError(t, err)
	expired, err := GenerateToken(1, 0, testSecret, -time.Minute)
	require.NoError(t, err)

	cases := map[string]struct{ token, secret string }{
		"wrong secret": {good, "wrong-secret"},
		"expired":      {expired, testSecret},
		"malformed":    {"not.a.jwt", testSecret},
		"empty":        {"", testSecret},
	}
	for name, tc := range cases {
		_, err := ParseToken(tc.token, tc.secret)
		assert.Error(t, err, name)
	}
}

func TestGenerateToken_DifferentCharacters(t *testing.T) {
	t1, _ := GenerateToken(1, 10, testSecret, time.Hour)
	t2, _ := GenerateToken(1, 11, testSecret, time.Hour)
	assert.NotEqual(t, t1, t2)
}
