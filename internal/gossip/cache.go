package gossip

import "time"

// SeenTTL is how long a gossip id is remembered for duplicate
// suppression before it is pruned, matching gossip.py's mark_gossip_seen
// window.
const SeenTTL = 300 * time.Second

// SeenCache remembers recently observed gossip ids so the same
// announcement is never forwarded twice.
type SeenCache struct {
	seen map[string]time.Time
	ttl  time.Duration
}

// NewSeenCache returns an empty SeenCache using the default SeenTTL.
func NewSeenCache() *SeenCache {
	return &SeenCache{seen: make(map[string]time.Time), ttl: SeenTTL}
}

// SetTTL overrides the default duplicate-suppression window, letting a
// node's config.GossipTTL drive this instead of the package default.
func (c *SeenCache) SetTTL(ttl time.Duration) {
	if ttl > 0 {
		c.ttl = ttl
	}
}

// MarkSeen prunes entries older than the configured TTL relative to now,
// then reports whether id was already present. If it was not, it is
// recorded at now and false is returned so the caller knows to forward it.
func (c *SeenCache) MarkSeen(id string, now time.Time) bool {
	for k, t := range c.seen {
		if now.Sub(t) > c.ttl {
			delete(c.seen, k)
		}
	}
	if _, ok := c.seen[id]; ok {
		return true
	}
	c.seen[id] = now
	return false
}

// Size returns the number of gossip ids currently tracked.
func (c *SeenCache) Size() int {
	return len(c.seen)
}
