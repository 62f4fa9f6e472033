package session

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a session id is unknown or expired.
var ErrNotFound = errors.New("session not found")

// Store is the external session store. Lifecycle (create, expiry, destroy)
// belongs to the store; the core only reads and writes whole sessions
// through it.
type Store interface {
	// Create makes a new empty session.
	Create(ctx context.Context) (*Session, error)

	// Get loads a session by id, refreshing its expiry.
	Get(ctx context.Context, id string) (*Session, error)

	// Save persists the session after mutation.
	Save(ctx context.Context, s *Session) error

	// Delete destroys a session. Deleting an unknown id is not an error.
	Delete(ctx context.Context, id string) error

	Close() error
}

// Options configure a session store.
type Options struct {
	MaxBytes int           // per-session file size cap, DefaultMaxBytes if zero
	TTL      time.Duration // session expiry, refreshed on access
}

func (o Options) maxBytes() int {
	if o.MaxBytes <= 0 {
		return DefaultMaxBytes
	}
	return o.MaxBytes
}

func (o Options) ttl() time.Duration {
	if o.TTL <= 0 {
		return 2 * time.Hour
	}
	return o.TTL
}
