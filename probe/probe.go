package probe

import (
	"context"
	"errors"
)

// Status classifies a probe call.
type Status uint8

const (
	// StatusOther covers network errors, timeouts, 5xx and malformed bodies.
	StatusOther Status = iota
	// StatusOK is a 2xx response with a well-formed body.
	StatusOK
	// StatusUnauthorized is a 401 from the validate endpoint.
	StatusUnauthorized
	// StatusNotFound is a 404 from the refresh endpoint: the refresh credential is dead.
	StatusNotFound
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusUnauthorized:
		return "unauthorized"
	case StatusNotFound:
		return "not_found"
	default:
		return "other"
	}
}

var (
	// ErrUnexpectedStatus marks a response status outside the endpoint contract.
	ErrUnexpectedStatus = errors.New("unexpected backend status")
	// ErrMalformedBody marks a 2xx response whose body could not be interpreted.
	ErrMalformedBody = errors.New("malformed backend body")
	// ErrTransport marks request construction or network failures, including timeouts.
	ErrTransport = errors.New("backend transport failure")
	// ErrPanic marks a probe implementation that panicked.
	ErrPanic = errors.New("probe panicked")
)

// ValidationResult is the classified outcome of a validate call. Approved is only
// meaningful when Status is StatusOK.
type ValidationResult struct {
	Status   Status
	Approved bool
	Err      error
}

// RefreshOutcome is the classified outcome of a refresh call. NewAccess is set only
// when Status is StatusOK.
type RefreshOutcome struct {
	Status    Status
	NewAccess string
	Err       error
}

// Probe is the backend contract consumed by the guard. Both calls must be bounded
// in time and must be safe to retry.
type Probe interface {
	Validate(ctx context.Context, access string) ValidationResult
	Refresh(ctx context.Context, refresh string) RefreshOutcome
}

// Funcs adapts two functions to the Probe interface.
type Funcs struct {
	ValidateFunc func(ctx context.Context, access string) ValidationResult
	RefreshFunc  func(ctx context.Context, refresh string) RefreshOutcome
}

func (f Funcs) Validate(ctx context.Context, access string) ValidationResult {
	if f.ValidateFunc == nil {
		return ValidationResult{Status: StatusOther, Err: ErrTransport}
	}
	return f.ValidateFunc(ctx, access)
}

func (f Funcs) Refresh(ctx context.Context, refresh string) RefreshOutcome {
	if f.RefreshFunc == nil {
		return RefreshOutcome{Status: StatusOther, Err: ErrTransport}
	}
	return f.RefreshFunc(ctx, refresh)
}
