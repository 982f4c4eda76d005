package consensus

import "github.com/google/uuid"

// uuidGenerator produces consensus instance ids with google/uuid, adopted
// from the pack (AryanBagade-dynamoDB) for collision-proof identifiers
// independent of any node-local counter state — unlike gossip ids, which
// are murmur3 hashes of a counter, instance ids are referenced recursively
// across a whole consensus subtree and never get a chance to re-derive
// themselves from local state if two nodes ever raced on a counter.
type uuidGenerator struct{}

// NewUUIDGenerator returns the default IDGenerator used in production.
func NewUUIDGenerator() IDGenerator { return uuidGenerator{} }

func (uuidGenerator) NewID() string { return uuid.NewString() }
