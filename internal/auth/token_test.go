package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionTokenRoundTrip(t *testing.T) {
	sessionID := uuid.New()
	customerID := uuid.New()

	token, err := GenerateSessionToken(sessionID, customerID, "secret", time.Hour)
	require.NoError(t, err)

	claims, err := ValidateSessionToken(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, sessionID, claims.SessionID)
	assert.Equal(t, customerID, claims.CustomerID)
}

func TestValidateSessionToken_WrongSecret(t *testing.T) {
	token, err := GenerateSessionToken(uuid.New(), uuid.New(), "secret", time.Hour)
	require.NoError(t, err)

	_, err = ValidateSessionToken(token, "other-secret")
	require.Error(t, err)
}

func TestValidateSessionToken_Expired(t *testing.T) {
	token, err := GenerateSessionToken(uuid.New(), uuid.New(), "secret", -time.Minute)
	require.NoError(t, err)

	_, err = ValidateSessionToken(token, "secret")
	require.Error(t, err)
}

func TestValidateSessionToken_Garbage(t *testing.T) {
	_, err := ValidateSessionToken("not.a.token", "secret")
	require.Error(t, err)
}

func TestPinBlockRoundTrip(t *testing.T) {
	pin, err := DecodePinBlock(EncodePinBlock("1234"))
	require.NoError(t, err)
	assert.Equal(t, "1234", pin)
}

func TestDecodePinBlock_Invalid(t *testing.T) {
	_, err := DecodePinBlock("%%%")
	require.Error(t, err)

	_, err = DecodePinBlock("")
	require.Error(t, err)
}

func TestHashAndVerifyPIN(t *testing.T) {
	hash, err := HashPIN("1234")
	require.NoError(t, err)

	assert.True(t, VerifyPIN("1234", hash))
	assert.False(t, VerifyPIN("4321", hash))
}
