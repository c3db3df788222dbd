package credential

import (
	"context"
	"errors"
)

// ErrStorage wraps every I/O failure of the underlying persistence.
var ErrStorage = errors.New("credential storage unavailable")

// ErrInvalidKind is returned for a Kind outside KindRefresh/KindAccess.
var ErrInvalidKind = errors.New("invalid credential kind")

// ErrEmptySession is returned when an operation is called without a session ID.
var ErrEmptySession = errors.New("empty session id")

// Kind names one of the two secrets kept per session.
type Kind uint8

const (
	// KindRefresh is the long-lived credential used only to mint access credentials.
	KindRefresh Kind = iota + 1
	// KindAccess is the short-lived bearer credential attached to API calls.
	KindAccess
)

// String returns the persisted field name for k.
func (k Kind) String() string {
	switch k {
	case KindRefresh:
		return "refreshCredential"
	case KindAccess:
		return "accessCredential"
	default:
		return "unknown"
	}
}

// Valid reports whether k is one of the two known kinds.
func (k Kind) Valid() bool {
	return k == KindRefresh || k == KindAccess
}

// Store is the credential persistence contract consumed by the guard engine.
//
// All operations are atomic with respect to each other for the same session:
// a concurrent Set never produces a torn read. Get reports absence with ok=false
// and a nil error; storage failures are returned wrapped in ErrStorage.
type Store interface {
	Get(ctx context.Context, sessionID string, kind Kind) (value string, ok bool, err error)
	Set(ctx context.Context, sessionID string, kind Kind, value string) error
	SetPair(ctx context.Context, sessionID, refresh, access string) error
	Clear(ctx context.Context, sessionID string, kind Kind) error
	ClearAll(ctx context.Context, sessionID string) error
}

func checkArgs(sessionID string, kind Kind) error {
	if sessionID == "" {
		return ErrEmptySession
	}
	if !kind.Valid() {
		return ErrInvalidKind
	}
	return nil
}
