package platform

import "context"

// Adapter connects one chat platform to a Handler.
type Adapter interface {
	// ID returns the unique adapter identifier.
	ID() string

	// Name returns the human-readable platform name.
	Name() string

	// Start connects and begins delivering messages. It may block until ctx
	// is cancelled or return once background workers are running.
	Start(ctx context.Context) error

	// Stop disconnects gracefully.
	Stop(ctx context.Context) error

	// IsEnabled returns whether the adapter is enabled in configuration.
	IsEnabled() bool
}
