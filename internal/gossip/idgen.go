package gossip

import (
	"crypto/rand"
	"fmt"
	"sync/atomic"

	"github.com/spaolacci/murmur3"
)

// IDGenerator produces opaque, collision-resistant gossip ids. Each id
// hashes a node-local counter plus a random nonce with murmur3 (a
// dependency already carried by the teacher for hash-ring placement,
// repurposed here for id generation rather than partitioning) and
// renders the 128-bit digest as hex text.
type IDGenerator struct {
	node    string
	counter uint64
}

// NewIDGenerator returns an IDGenerator scoped to node, so ids from
// different nodes never collide even if their counters race.
func NewIDGenerator(node string) *IDGenerator {
	return &IDGenerator{node: node}
}

// NewID returns a fresh gossip id.
func (g *IDGenerator) NewID() string {
	n := atomic.AddUint64(&g.counter, 1)
	var nonce [8]byte
	_, _ = rand.Read(nonce[:])

	seed := fmt.Sprintf("%s:%d:%x", g.node, n, nonce)
	h1, h2 := murmur3.Sum128([]byte(seed))
	return fmt.Sprintf("%016x%016x", h1, h2)
}
