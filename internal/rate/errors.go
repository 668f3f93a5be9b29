package rate

import "errors"

var (
	// ErrRateLimited is returned when the client has used up its window.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps any counter read or write failure.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
