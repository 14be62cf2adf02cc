// Package attempts counts failed logins per identity inside a sliding
// lockout window.
//
// An entry starts at the first failure and expires LockoutTime later; any
// further failure inside the window increments it without extending it.
// An identity is locked while its count is at least MaxFailedAttempts.
package attempts

import (
	"context"
	"strings"
	"time"
)

// Config is the lockout policy.
type Config struct {
	MaxFailedAttempts int
	LockoutTime       time.Duration
}

// DefaultConfig is five failures in fifteen minutes.
var DefaultConfig = Config{MaxFailedAttempts: 5, LockoutTime: 15 * time.Minute}

// Counter is implemented by the in-process and the Redis backends.
type Counter interface {
	// RecordFailure adds one failure for key and returns the new count.
	RecordFailure(ctx context.Context, key string) (int, error)
	// Reserve counts an attempt before its password is checked. allowed is
	// false when the count was already at the threshold, so that concurrent
	// attempts cannot all pass a separate lock check. The reservation stays
	// as a failure unless Clear is called after a successful login.
	Reserve(ctx context.Context, key string) (allowed bool, count int, err error)
	IsLocked(ctx context.Context, key string) (bool, error)
	Clear(ctx context.Context, key string) error
}

// NormalizeKey trims and lower-cases a login identity so "Bob" and " bob "
// share one counter.
func NormalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}
