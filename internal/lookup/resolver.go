// Package lookup resolves user-facing keys to store entries: attribute
// predicates, transitive link entries, and the two-stage username search.
package lookup

import (
	"context"
	"log/slog"
	"regexp"
	"sort"

	"github.com/keyfob/keyfob/internal/store"
	"github.com/keyfob/keyfob/internal/transform"
	"github.com/keyfob/keyfob/internal/vault"
	"github.com/keyfob/keyfob/pkg/schema"
)

// maxLinkDepth bounds transitive link resolution. The historical behavior
// followed links without a guard and hung on cycles; exceeding the bound now
// fails fast with LINK_CYCLE.
const maxLinkDepth = 8

// smtpIdentity matches email-style user@server keys.
var smtpIdentity = regexp.MustCompile(`^([^@\s]+)@([^@\s]+)$`)

// Service is the store-facing lookup layer. All operations are synchronous
// request/response against the store.
type Service struct {
	store  store.Store
	sealer *vault.Sealer
	ring   string
	logger *slog.Logger
}

// NewService creates a lookup Service bound to one ring.
func NewService(s store.Store, sealer *vault.Sealer, ring string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: s, sealer: sealer, ring: ring, logger: logger}
}

// KeyAttributes resolves a lookup key to the store attribute predicate:
// a user/server/protocol triple for email-style keys, a plain key otherwise.
func KeyAttributes(key string) map[string]string {
	if m := smtpIdentity.FindStringSubmatch(key); m != nil {
		return map[string]string{
			store.AttrUser:     m[1],
			store.AttrServer:   m[2],
			store.AttrProtocol: "smtp",
		}
	}
	return map[string]string{store.AttrKey: key}
}

// Get resolves key to its entry, following link entries, unseals the secret
// and applies the transform spec.
func (s *Service) Get(ctx context.Context, key string, spec transform.Spec) (string, error) {
	entry, err := s.resolve(ctx, key)
	if err != nil {
		return "", err
	}
	secret, err := s.sealer.Open(entry.Secret)
	if err != nil {
		return "", err
	}
	return transform.Apply(secret, key, spec)
}

// resolve finds the entry for key, chasing link attributes up to maxLinkDepth.
func (s *Service) resolve(ctx context.Context, key string) (*store.Entry, error) {
	current := key
	for depth := 0; depth <= maxLinkDepth; depth++ {
		entries, err := s.store.FindEntries(ctx, s.ring, KeyAttributes(current))
		if err != nil {
			return nil, err
		}
		if len(entries) == 0 {
			return nil, schema.NewErrorf(schema.ErrCodeNotFound,
				"no entry for %q in ring %q", current, s.ring).WithKey(key)
		}
		entry := entries[0]
		target, linked := entry.Attributes[store.AttrLink]
		if !linked || target == "" {
			if depth > 0 {
				s.logger.DebugContext(ctx, "resolved link chain",
					slog.String("key", key), slog.Int("depth", depth))
			}
			return entry, nil
		}
		current = target
	}
	return nil, schema.NewErrorf(schema.ErrCodeLinkCycle,
		"link chain for %q exceeds %d hops", key, maxLinkDepth).WithKey(key)
}

// Set stores secret under key, replacing any existing entry with the same
// attribute predicate. Returns the new entry ID.
func (s *Service) Set(ctx context.Context, key string, secret []byte) (string, error) {
	sealed, err := s.sealer.Seal(secret)
	if err != nil {
		return "", err
	}
	return s.store.CreateEntry(ctx, s.ring, key, KeyAttributes(key), sealed, true)
}

// Link creates a redirect entry: lookups of alias resolve to src's entry.
func (s *Service) Link(ctx context.Context, src, alias string) (string, error) {
	attrs := KeyAttributes(alias)
	attrs[store.AttrLink] = src
	sealed, err := s.sealer.Seal(nil)
	if err != nil {
		return "", err
	}
	return s.store.CreateEntry(ctx, s.ring, alias, attrs, sealed, true)
}

// Delete removes every entry matching key's predicate. Links are not
// followed: deleting an alias leaves its target in place.
func (s *Service) Delete(ctx context.Context, key string) error {
	entries, err := s.store.FindEntries(ctx, s.ring, KeyAttributes(key))
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return schema.NewErrorf(schema.ErrCodeNotFound,
			"no entry for %q in ring %q", key, s.ring).WithKey(key)
	}
	for _, e := range entries {
		if err := s.store.DeleteEntry(ctx, s.ring, e.ID); err != nil {
			return err
		}
	}
	return nil
}

// List returns the non-sensitive info of every entry in the ring.
func (s *Service) List(ctx context.Context) ([]*store.EntryInfo, error) {
	return s.store.ListEntries(ctx, s.ring)
}

// Username returns the distinct local parts of entries whose display name
// matches *@domain, falling back to an exact-name match when the suffix
// stage finds nothing.
func (s *Service) Username(ctx context.Context, domain string) ([]string, error) {
	infos, err := s.store.ListEntries(ctx, s.ring)
	if err != nil {
		return nil, err
	}

	suffix := regexp.MustCompile(`^(.+)@` + regexp.QuoteMeta(domain) + `$`)
	seen := make(map[string]struct{})
	var names []string
	for _, info := range infos {
		m := suffix.FindStringSubmatch(info.DisplayName)
		if m == nil {
			continue
		}
		if _, dup := seen[m[1]]; !dup {
			seen[m[1]] = struct{}{}
			names = append(names, m[1])
		}
	}
	if len(names) > 0 {
		sort.Strings(names)
		return names, nil
	}

	exact := regexp.MustCompile(`^` + regexp.QuoteMeta(domain) + `$`)
	for _, info := range infos {
		if exact.MatchString(info.DisplayName) {
			return []string{info.DisplayName}, nil
		}
	}
	return nil, schema.NewErrorf(schema.ErrCodeNotFound,
		"no usernames for %q in ring %q", domain, s.ring).WithKey(domain)
}
