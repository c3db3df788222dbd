package flows

import (
	"context"
)

// LogoutDeps captures logout flow dependencies.
type LogoutDeps struct {
	ClearAll func(ctx context.Context, sessionID string) error
	// ResetThrottle is optional; its failure does not fail the logout.
	ResetThrottle func(ctx context.Context, sessionID string) error
	Warn          func(msg string, sessionID string, err error)
}

// RunLogout destroys both credentials of a session.
func RunLogout(ctx context.Context, sessionID string, deps LogoutDeps) error {
	if err := deps.ClearAll(ctx, sessionID); err != nil {
		return err
	}
	if deps.ResetThrottle != nil {
		if err := deps.ResetThrottle(ctx, sessionID); err != nil && deps.Warn != nil {
			deps.Warn("goGuard: refresh throttle reset failed", sessionID, err)
		}
	}
	return nil
}
