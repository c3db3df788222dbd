package internal

import (
	"errors"

	"github.com/google/uuid"
)

// MaxSessionIDLen bounds externally supplied session IDs (cookies, headers).
const MaxSessionIDLen = 128

var errSessionID = errors.New("invalid session id")

// NewSessionID mints a random (v4) UUID session identifier.
func NewSessionID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// NewRequestID returns a random request correlation ID, or "" when the
// random source fails.
func NewRequestID() string {
	id, err := uuid.NewRandom()
	if err != nil {
		return ""
	}
	return id.String()
}

// CheckSessionID accepts 1..MaxSessionIDLen bytes of [A-Za-z0-9._~-].
// Anything else could break store key layouts and is refused.
func CheckSessionID(id string) error {
	if id == "" || len(id) > MaxSessionIDLen {
		return errSessionID
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-', c == '_', c == '.', c == '~':
		default:
			return errSessionID
		}
	}
	return nil
}
