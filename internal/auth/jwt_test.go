package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSignAndParseJWT(t *testing.T) {
	token, err := SignJWT(42, "secret", time.Hour)
	require.NoError(t, err)

	id, err := ParseJWT(token, "secret")
	require.NoError(t, err)
	require.Equal(t, uint64(42), id)
}

func TestParseJWTRejectsWrongSecretAndExpiry(t *testing.T) {
	token, err := SignJWT(42, "secret", time.Hour)
	require.NoError(t, err)
	_, err = ParseJWT(token, "other")
	require.ErrorIs(t, err, ErrInvalidToken)

	expired, err := SignJWT(42, "secret", -time.Minute)
	require.NoError(t, err)
	_, err = ParseJWT(expired, "secret")
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = ParseJWT("not-a-token", "secret")
	require.ErrorIs(t, err, ErrInvalidToken)
}
