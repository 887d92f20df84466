package store

import "time"

// Well-known attribute names.
const (
	// AttrKey is the plain lookup key of an entry.
	AttrKey = "key"
	// AttrLink marks a redirect entry; its value is the target lookup key.
	AttrLink = "link"
	// AttrUser, AttrServer and AttrProtocol form the network-identity
	// triple used for user@server style keys.
	AttrUser     = "user"
	AttrServer   = "server"
	AttrProtocol = "protocol"
)

// Entry is a stored credential: an attribute predicate plus an opaque
// secret payload. The secret is sealed before it reaches the store and is
// never logged.
type Entry struct {
	ID          string            `json:"id"`
	Ring        string            `json:"ring"`
	DisplayName string            `json:"display_name"`
	Attributes  map[string]string `json:"attributes"`
	Secret      []byte            `json:"-"`
	CreatedAt   time.Time         `json:"created_at"`
}

// EntryInfo is the non-sensitive view of an entry used by list operations.
type EntryInfo struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
}
