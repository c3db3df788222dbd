// Package middleware maps guard decisions onto HTTP for edge deployments.
//
// # Guards
//
//   - [Guard] wraps a net/http handler.
//   - [GinGuard] is the gin equivalent.
//
// Both read the session ID from a cookie (or [Options.SessionIDFunc]), call
// Engine.Authorize, and translate the decision:
//
//   - Allow: the forwarded request carries the access credential in its
//     Authorization header and the decision in its context.
//   - AllowPendingApproval: redirect to PendingApprovalURL, or 403.
//   - DenyRedirectLogin: 302 to LoginURL for browser navigations, else 401.
//   - DenyMaintenance: redirect to MaintenanceURL with ?code=, else 503.
//
// This package does no credential handling of its own; every decision comes
// from the engine.
package middleware
