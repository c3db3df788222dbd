package credential

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

const sealedPrefix = "x1."

// ErrSealerKey is returned when the sealing key is not chacha20poly1305.KeySize bytes.
var ErrSealerKey = errors.New("sealer key must be 32 bytes")

// Sealer encrypts credential values at rest with XChaCha20-Poly1305.
//
// The session ID and credential kind are bound as additional data, so a sealed
// access credential cannot be replayed as another session's value or as a
// refresh credential.
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer builds a Sealer from a 32-byte key.
func NewSealer(key []byte) (*Sealer, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, ErrSealerKey
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	return &Sealer{aead: aead}, nil
}

func (s *Sealer) seal(sessionID string, kind Kind, value string) (string, error) {
	if s == nil {
		return value, nil
	}

	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(value)+s.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("%w: nonce: %v", ErrStorage, err)
	}

	out := s.aead.Seal(nonce, nonce, []byte(value), additionalData(sessionID, kind))
	return sealedPrefix + base64.RawURLEncoding.EncodeToString(out), nil
}

func (s *Sealer) open(sessionID string, kind Kind, stored string) (string, error) {
	if s == nil {
		return stored, nil
	}
	if !strings.HasPrefix(stored, sealedPrefix) {
		return "", fmt.Errorf("%w: value is not sealed", ErrStorage)
	}

	raw, err := base64.RawURLEncoding.DecodeString(stored[len(sealedPrefix):])
	if err != nil {
		return "", fmt.Errorf("%w: sealed value encoding: %v", ErrStorage, err)
	}
	if len(raw) < s.aead.NonceSize()+s.aead.Overhead() {
		return "", fmt.Errorf("%w: sealed value truncated", ErrStorage)
	}

	nonce, ct := raw[:s.aead.NonceSize()], raw[s.aead.NonceSize():]
	plain, err := s.aead.Open(nil, nonce, ct, additionalData(sessionID, kind))
	if err != nil {
		return "", fmt.Errorf("%w: sealed value rejected", ErrStorage)
	}
	return string(plain), nil
}

func additionalData(sessionID string, kind Kind) []byte {
	return []byte(kind.String() + "\x00" + sessionID)
}
