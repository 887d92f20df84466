package store

import "context"

// Store defines the secret-store contract. All implementations must be safe
// for concurrent use; callers treat the store as externally synchronized.
type Store interface {
	// ListEntries returns the non-sensitive info of every entry in a ring.
	ListEntries(ctx context.Context, ring string) ([]*EntryInfo, error)

	// GetInfo returns the non-sensitive info of a single entry.
	GetInfo(ctx context.Context, ring, id string) (*EntryInfo, error)

	// FindEntries returns all entries in the ring whose attributes contain
	// every pair in attrs.
	FindEntries(ctx context.Context, ring string, attrs map[string]string) ([]*Entry, error)

	// CreateEntry stores a new entry and returns its ID. With replace set,
	// existing entries matching the same attribute predicate are removed
	// first.
	CreateEntry(ctx context.Context, ring, displayName string, attrs map[string]string, secret []byte, replace bool) (string, error)

	// DeleteEntry removes an entry by ID.
	DeleteEntry(ctx context.Context, ring, id string) error

	// Maintenance
	Migrate(ctx context.Context) error

	// Lifecycle
	Close() error
}
