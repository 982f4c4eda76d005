// Package membership tracks known peer endpoints for a single node,
// keyed by the canonical "host:port" form of their resolved address.
//
// Adapted from the teacher's gossip.MembershipList: the same guarded-map,
// copy-out-on-read shape, but without the SWIM-style alive/suspect/dead
// incarnation tracking that a clustered key-value store needs — this
// protocol only needs a flat last-seen map with stale eviction.
package membership

import (
	"fmt"
	"time"
)

// StaleAfter is the age past which a peer record is evicted.
const StaleAfter = 120 * time.Second

// Key is the canonical "host:port" identity of a peer.
type Key string

// Record describes everything known locally about one peer.
type Record struct {
	Key      Key
	Host     string
	Port     uint16
	Name     string
	LastSeen time.Time
}

// Table is the set of known peers for this node.
type Table struct {
	resolver   Resolver
	records    map[Key]*Record
	staleAfter time.Duration
}

// New creates an empty peer Table using the given Resolver for hostname
// lookups performed by Add, with the default StaleAfter eviction age.
func New(resolver Resolver) *Table {
	return &Table{
		resolver:   resolver,
		records:    make(map[Key]*Record),
		staleAfter: StaleAfter,
	}
}

// SetStaleAfter overrides the eviction age used by EvictStale, letting a
// node's config.PeerTTL drive it instead of the package default.
func (t *Table) SetStaleAfter(d time.Duration) {
	if d > 0 {
		t.staleAfter = d
	}
}

func makeKey(host string, port uint16) Key {
	return Key(fmt.Sprintf("%s:%d", host, port))
}

// ResolveKey resolves host the same way Add does, without mutating the
// table, so a caller can check Has(key) before deciding whether an
// upsert is a first contact or a refresh of a known peer.
func (t *Table) ResolveKey(host string, port uint16) Key {
	resolved, err := t.resolver.Resolve(host)
	if err != nil {
		resolved = host
	}
	return makeKey(resolved, port)
}

// Add resolves host to an IPv4 address, upserts a record for it, and
// returns the canonical key. A later call carrying a non-empty name
// updates the stored display name; an empty name never clobbers one
// already on file.
func (t *Table) Add(host string, port uint16, name string, now time.Time) (Key, error) {
	resolved, err := t.resolver.Resolve(host)
	if err != nil {
		resolved = host
	}
	key := makeKey(resolved, port)

	if rec, ok := t.records[key]; ok {
		rec.LastSeen = now
		if name != "" {
			rec.Name = name
		}
		return key, nil
	}

	if name == "" {
		// node.py's add_peer defaults the display name to the peer key
		// on first contact (name or key) rather than leaving it blank,
		// so the peers console line always shows something for name=.
		name = string(key)
	}

	t.records[key] = &Record{
		Key:      key,
		Host:     resolved,
		Port:     port,
		Name:     name,
		LastSeen: now,
	}
	return key, nil
}

// Touch refreshes the last-seen timestamp of a peer already on file. It is
// a no-op for an unknown key.
func (t *Table) Touch(key Key, now time.Time) {
	if rec, ok := t.records[key]; ok {
		rec.LastSeen = now
	}
}

// Has reports whether key is currently known.
func (t *Table) Has(key Key) bool {
	_, ok := t.records[key]
	return ok
}

// List returns every known peer record in unspecified order.
func (t *Table) List() []Record {
	out := make([]Record, 0, len(t.records))
	for _, rec := range t.records {
		out = append(out, *rec)
	}
	return out
}

// Keys returns every known peer key in unspecified order.
func (t *Table) Keys() []Key {
	out := make([]Key, 0, len(t.records))
	for k := range t.records {
		out = append(out, k)
	}
	return out
}

// EvictStale removes every record whose last-seen age exceeds the
// configured stale threshold (StaleAfter by default) as of now, and
// returns the evicted keys.
func (t *Table) EvictStale(now time.Time) []Key {
	var evicted []Key
	for k, rec := range t.records {
		if now.Sub(rec.LastSeen) > t.staleAfter {
			delete(t.records, k)
			evicted = append(evicted, k)
		}
	}
	return evicted
}

// Size returns the number of known peers.
func (t *Table) Size() int {
	return len(t.records)
}
