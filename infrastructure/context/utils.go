// Package context holds the timeouts shared by start-up and background work.
package context

import (
	"context"
	"time"
)

const (
	// DefaultPingTimeout bounds database and Redis pings.
	DefaultPingTimeout = 5 * time.Second
	// DefaultShutdownTimeout bounds background job draining.
	DefaultShutdownTimeout = 10 * time.Second
)

// WithPingTimeout returns a background context bounded by DefaultPingTimeout.
func WithPingTimeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), DefaultPingTimeout)
}

// WithShutdownTimeout returns a background context bounded by
// DefaultShutdownTimeout.
func WithShutdownTimeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), DefaultShutdownTimeout)
}

// WithOptionalTimeout bounds parent by d when d is positive and returns it
// unchanged (with a no-op cancel) otherwise.
func WithOptionalTimeout(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return parent, func() {}
	}
	return context.WithTimeout(parent, d)
}
