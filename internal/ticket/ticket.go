// Package ticket implements the stateless session-ticket authenticator that
// gates every client-facing directory operation.
//
// A ticket is a single AES-256-GCM encrypted blob under the long-lived server
// key. It decrypts to JSON {client_id, expires, session_key}. The session key
// is a per-session symmetric key used to decrypt request payloads that the
// client chose to encrypt end-to-end.
package ticket

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrUnauthenticated covers missing, undecryptable and malformed tickets.
	// Decryption and parse failures collapse into this one error so the
	// response does not leak which step rejected the ticket.
	ErrUnauthenticated = errors.New("invalid or missing ticket")

	// ErrExpired is returned for structurally valid tickets past their expiry.
	ErrExpired = errors.New("ticket expired")
)

// sessionKeySize is the size of the per-session payload key in bytes.
const sessionKeySize = 32

// Ticket is the decrypted content of a session credential.
type Ticket struct {
	ClientID   string    `json:"client_id"`
	Expires    time.Time `json:"expires"`
	SessionKey string    `json:"session_key"` // hex-encoded payload key
}

// Authenticator verifies inbound tickets under the server key.
type Authenticator struct {
	serverKey []byte
	now       func() time.Time
}

// NewAuthenticator creates an authenticator from the server's ticket key.
func NewAuthenticator(serverKey []byte) (*Authenticator, error) {
	if len(serverKey) != 32 {
		return nil, fmt.Errorf("server key must be 32 bytes, got %d", len(serverKey))
	}
	return &Authenticator{
		serverKey: serverKey,
		now:       time.Now,
	}, nil
}

// Open verifies and decrypts an encoded ticket, returning the caller's
// verified identity. Verification order is fixed: presence, decryption,
// structure, then expiry.
func (a *Authenticator) Open(encoded string) (*Ticket, error) {
	if encoded == "" {
		return nil, ErrUnauthenticated
	}

	plaintext, err := open(a.serverKey, encoded)
	if err != nil {
		return nil, ErrUnauthenticated
	}

	var tk Ticket
	if err := json.Unmarshal(plaintext, &tk); err != nil {
		return nil, ErrUnauthenticated
	}
	if tk.ClientID == "" {
		return nil, ErrUnauthenticated
	}

	if a.now().After(tk.Expires) {
		return nil, ErrExpired
	}

	return &tk, nil
}

// OpenPayload decrypts a request payload under the ticket's session key and
// unmarshals it into v.
func (a *Authenticator) OpenPayload(tk *Ticket, encoded string, v any) error {
	key, err := hex.DecodeString(tk.SessionKey)
	if err != nil || len(key) != sessionKeySize {
		return ErrUnauthenticated
	}

	plaintext, err := open(key, encoded)
	if err != nil {
		return ErrUnauthenticated
	}

	if err := json.Unmarshal(plaintext, v); err != nil {
		return ErrUnauthenticated
	}
	return nil
}

// Mint encrypts a fresh ticket for clientID under the server key. It returns
// the encoded ticket and the session key generated for the ticket's lifetime.
// Minting normally happens in the authentication service; the directory ships
// it for the operator CLI and tests.
func Mint(serverKey []byte, clientID string, ttl time.Duration) (string, []byte, error) {
	if clientID == "" {
		return "", nil, fmt.Errorf("client id is required")
	}

	sessionKey := make([]byte, sessionKeySize)
	if _, err := rand.Read(sessionKey); err != nil {
		return "", nil, fmt.Errorf("generate session key: %w", err)
	}

	tk := Ticket{
		ClientID:   clientID,
		Expires:    time.Now().Add(ttl),
		SessionKey: hex.EncodeToString(sessionKey),
	}

	plaintext, err := json.Marshal(tk)
	if err != nil {
		return "", nil, fmt.Errorf("marshal ticket: %w", err)
	}

	encoded, err := seal(serverKey, plaintext)
	if err != nil {
		return "", nil, fmt.Errorf("encrypt ticket: %w", err)
	}
	return encoded, sessionKey, nil
}

// SealPayload encrypts v under a session key, producing the encrypted request
// payload format the authenticator accepts. Used by tests and client tooling.
func SealPayload(sessionKey []byte, v any) (string, error) {
	plaintext, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	return seal(sessionKey, plaintext)
}

// seal encrypts plaintext with AES-256-GCM and returns base64(nonce || ciphertext).
func seal(key, plaintext []byte) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("create GCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := gcm.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// open reverses seal.
func open(key []byte, encoded string) ([]byte, error) {
	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	if len(sealed) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}

	nonce, ciphertext := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ciphertext, nil)
}
