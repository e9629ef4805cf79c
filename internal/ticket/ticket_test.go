package ticket

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testServerKey() []byte {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	return key
}

func TestMintAndOpen(t *testing.T) {
	key := testServerKey()
	auth, err := NewAuthenticator(key)
	require.NoError(t, err)

	encoded, sessionKey, err := Mint(key, "client-42", time.Hour)
	require.NoError(t, err)
	assert.NotEmpty(t, encoded)
	assert.Len(t, sessionKey, 32)

	tk, err := auth.Open(encoded)
	require.NoError(t, err)
	assert.Equal(t, "client-42", tk.ClientID)
	assert.True(t, tk.Expires.After(time.Now()))
}

func TestOpen_MissingTicket(t *testing.T) {
	auth, err := NewAuthenticator(testServerKey())
	require.NoError(t, err)

	_, err = auth.Open("")
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestOpen_Garbage(t *testing.T) {
	auth, err := NewAuthenticator(testServerKey())
	require.NoError(t, err)

	for _, encoded := range []string{
		"not-base64!!!",
		"aGVsbG8=", // valid base64, not a ciphertext
		"AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA",
	} {
		_, err := auth.Open(encoded)
		assert.ErrorIs(t, err, ErrUnauthenticated, "ticket %q", encoded)
	}
}

func TestOpen_WrongKey(t *testing.T) {
	key := testServerKey()
	otherKey := testServerKey()
	otherKey[0] ^= 0xff

	encoded, _, err := Mint(key, "client-42", time.Hour)
	require.NoError(t, err)

	auth, err := NewAuthenticator(otherKey)
	require.NoError(t, err)

	_, err = auth.Open(encoded)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestOpen_Expired(t *testing.T) {
	key := testServerKey()
	auth, err := NewAuthenticator(key)
	require.NoError(t, err)

	encoded, _, err := Mint(key, "client-42", -time.Minute)
	require.NoError(t, err)

	_, err = auth.Open(encoded)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestOpen_ExpiryBoundary(t *testing.T) {
	key := testServerKey()
	auth, err := NewAuthenticator(key)
	require.NoError(t, err)

	// Pin the clock so the boundary is deterministic
	now := time.Now()
	auth.now = func() time.Time { return now.Add(2 * time.Hour) }

	encoded, _, err := Mint(key, "client-42", time.Hour)
	require.NoError(t, err)

	_, err = auth.Open(encoded)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestOpenPayload_RoundTrip(t *testing.T) {
	key := testServerKey()
	auth, err := NewAuthenticator(key)
	require.NoError(t, err)

	encoded, sessionKey, err := Mint(key, "client-42", time.Hour)
	require.NoError(t, err)

	tk, err := auth.Open(encoded)
	require.NoError(t, err)

	payload := map[string]string{"owner_id": "client-1", "file_id": "f-9"}
	sealed, err := SealPayload(sessionKey, payload)
	require.NoError(t, err)

	var got map[string]string
	require.NoError(t, auth.OpenPayload(tk, sealed, &got))
	assert.Equal(t, payload, got)
}

func TestOpenPayload_WrongSessionKey(t *testing.T) {
	key := testServerKey()
	auth, err := NewAuthenticator(key)
	require.NoError(t, err)

	encoded, _, err := Mint(key, "client-42", time.Hour)
	require.NoError(t, err)
	tk, err := auth.Open(encoded)
	require.NoError(t, err)

	// Seal under a different session key than the ticket carries
	otherKey := make([]byte, 32)
	sealed, err := SealPayload(otherKey, map[string]string{"k": "v"})
	require.NoError(t, err)

	var got map[string]string
	err = auth.OpenPayload(tk, sealed, &got)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestMint_EmptyClientID(t *testing.T) {
	_, _, err := Mint(testServerKey(), "", time.Hour)
	assert.Error(t, err)
}

func TestNewAuthenticator_BadKeySize(t *testing.T) {
	_, err := NewAuthenticator([]byte("short"))
	assert.Error(t, err)
}
