package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// ServerKeySize is the size of the ticket encryption key in bytes (AES-256).
const ServerKeySize = 32

// GenerateServerKey generates a new random ticket encryption key and returns
// it hex-encoded, ready to paste into a config file.
func GenerateServerKey() (string, error) {
	key := make([]byte, ServerKeySize)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("generate server key: %w", err)
	}
	return hex.EncodeToString(key), nil
}

// DecodeServerKey decodes a hex-encoded server key and checks its length.
func DecodeServerKey(encoded string) ([]byte, error) {
	if encoded == "" {
		return nil, fmt.Errorf("server key is required")
	}
	key, err := hex.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode server key: %w", err)
	}
	if len(key) != ServerKeySize {
		return nil, fmt.Errorf("server key must be %d bytes, got %d", ServerKeySize, len(key))
	}
	return key, nil
}
