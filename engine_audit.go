package goGuard

import (
	"context"
	"time"

	"github.com/MrEthical07/goGuard/internal"
	"github.com/MrEthical07/goGuard/internal/audit"
	"github.com/MrEthical07/goGuard/internal/flows"
)

func (e *Engine) emitAudit(ctx context.Context, event audit.Event) {
	if e == nil || e.audit == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.RequestID == "" {
		event.RequestID = RequestIDFromContext(ctx)
		if event.RequestID == "" {
			event.RequestID = internal.NewRequestID()
		}
	}
	if event.IP == "" {
		event.IP = clientIPFromContext(ctx)
	}
	e.audit.Emit(ctx, event)
}

func (e *Engine) emitAuthorize(ctx context.Context, sessionID string, d Decision, res flows.AuthorizeResult) {
	if e == nil || e.audit == nil {
		return
	}

	event := audit.Event{
		Type:      audit.TypeAuthorize,
		SessionID: sessionID,
		Decision:  d.Kind.String(),
		Code:      string(d.Code),
		Shared:    res.Shared,
		Success:   d.Kind == Allow || d.Kind == AllowPendingApproval,
	}
	if res.Err != nil {
		event.Error = res.Err.Error()
	}
	if res.Refreshed || res.EarlyExpiry || res.Diverged {
		event.Metadata = map[string]string{}
		if res.Refreshed {
			event.Metadata["refreshed"] = "true"
		}
		if res.EarlyExpiry {
			event.Metadata["early_expiry"] = "true"
		}
		if res.Diverged {
			event.Metadata["diverged"] = "true"
		}
	}
	e.emitAudit(ctx, event)
}
