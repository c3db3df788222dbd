package goGuard

import "errors"

var (
	// ErrBuilderUsed is returned by a second call to [Builder.Build].
	ErrBuilderUsed = errors.New("builder already used")
	// ErrProbeRequired is returned when neither a probe nor a usable Probe.BaseURL is configured.
	ErrProbeRequired = errors.New("backend probe required")
	// ErrRedisRequired is returned when the configured store or throttle backend needs Redis.
	ErrRedisRequired = errors.New("redis client required")
	// ErrPostgresRequired is returned when Store.Backend is postgres and no pool is given.
	ErrPostgresRequired = errors.New("postgres pool required")
	// ErrSessionID is returned for empty or malformed session identifiers.
	ErrSessionID = errors.New("invalid session id")
	// ErrMissingCredential is returned by Establish when the refresh credential is empty.
	ErrMissingCredential = errors.New("missing credential")
	// ErrSessionCreationFailed wraps store failures while establishing a session.
	ErrSessionCreationFailed = errors.New("session creation failed")
	// ErrSessionInvalidationFailed wraps store failures during logout.
	ErrSessionInvalidationFailed = errors.New("session invalidation failed")
	// ErrRefreshWaitCanceled is the outcome error seen by a caller that stopped
	// waiting on a refresh round because its own context ended.
	ErrRefreshWaitCanceled = errors.New("refresh wait canceled")
	// ErrRefreshThrottled is the outcome error of a round rejected by the refresh throttle.
	ErrRefreshThrottled = errors.New("refresh throttled")
	// ErrRefreshPanicked is the outcome error of a round whose leader panicked.
	ErrRefreshPanicked = errors.New("refresh leader panicked")
)
