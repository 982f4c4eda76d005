package consensus

import "time"

// Store holds every consensus instance for the process lifetime, indexed
// by instance id. Parent/child linkage is by opaque id, not by ownership
// pointer: traversal is always a map lookup, which avoids ownership
// cycles entirely — weak references are unnecessary because instances
// are never freed during normal operation (see design notes on
// unbounded growth for the one exception: explicit GC).
//
// Store is not internally synchronized; per the single-scheduler
// concurrency model, all mutation is expected to happen from one owning
// goroutine (see internal/loop).
type Store struct {
	instances map[string]*Instance
}

// NewStore creates an empty consensus Store.
func NewStore() *Store {
	return &Store{instances: make(map[string]*Instance)}
}

// Get looks up an instance by id.
func (s *Store) Get(id string) (*Instance, bool) {
	in, ok := s.instances[id]
	return in, ok
}

// Put inserts or replaces an instance by id.
func (s *Store) Put(in *Instance) {
	s.instances[in.ID] = in
}

// Count returns the number of instances currently held.
func (s *Store) Count() int {
	return len(s.instances)
}

// All returns every instance currently held, in unspecified order.
func (s *Store) All() []*Instance {
	out := make([]*Instance, 0, len(s.instances))
	for _, in := range s.instances {
		out = append(out, in)
	}
	return out
}

// GC removes resolved instances whose ExpiresAt lies more than grace in
// the past, bounding memory under sustained attack traffic per the design note on
// unbounded state growth. Unresolved instances are never collected here
// — they are candidates for ForceDecide instead, not deletion, since
// deleting an incomplete instance would silently lose in-flight votes.
func (s *Store) GC(now time.Time, grace time.Duration) int {
	removed := 0
	cutoff := now.Add(-grace).Unix()
	for id, in := range s.instances {
		if in.Resolved != nil && in.ExpiresAt != 0 && in.ExpiresAt < cutoff {
			delete(s.instances, id)
			removed++
		}
	}
	return removed
}

// EnforceCap drops resolved instances, in unspecified order, until Count
// is at most max; logging is left to the caller, and it returns how many
// were dropped. It is the backstop to grace-period GC under sustained
// hostile traffic. Unresolved instances are never dropped, so Count stays
// above max while more than max instances are unresolved.
func (s *Store) EnforceCap(max int) int {
	if len(s.instances) <= max {
		return 0
	}
	dropped := 0
	for id, in := range s.instances {
		if len(s.instances) <= max {
			break
		}
		if in.Resolved != nil {
			delete(s.instances, id)
			dropped++
		}
	}
	return dropped
}
