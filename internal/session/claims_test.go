package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeToken(t *testing.T) {
	exp := time.Unix(1893456000, 0) // 2030-01-01
	token := signedToken(t, "alice", &exp)

	claims, err := DecodeToken(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject)
	require.NotNil(t, claims.ExpiresAt)
	assert.Equal(t, exp.Unix(), claims.ExpiresAt.Unix())
}

func TestDecodeToken_IgnoresSignature(t *testing.T) {
	token := signedToken(t, "alice", nil)
	tampered := token[:len(token)-4] + "AAAA"

	claims, err := DecodeToken(tampered)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject)
}

func TestDecodeToken_Malformed(t *testing.T) {
	for _, token := range []string{"", "abc", "abc.def.ghi", "a.b"} {
		_, err := DecodeToken(token)
		assert.Error(t, err, token)
	}
}

func TestClaims_Expired(t *testing.T) {
	exp := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	claims := &Claims{Subject: "alice", ExpiresAt: &exp}

	assert.False(t, claims.Expired(exp.Add(-time.Second)))
	assert.False(t, claims.Expired(exp), "expiry instant itself is still valid")
	assert.True(t, claims.Expired(exp.Add(time.Millisecond)))

	assert.False(t, (&Claims{Subject: "alice"}).Expired(time.Now()))
}
