package rate

import "errors"

var (
	// ErrRateLimited is returned when a session exceeded its refresh budget.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps Redis failures of the fixed-window limiter.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
