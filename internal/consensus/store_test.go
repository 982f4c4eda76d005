package consensus

import (
	"testing"
	"time"

	"github.com/mcastellin/omnode/internal/faultinjector"
	"github.com/mcastellin/omnode/internal/membership"
)

func resolvedInstance(id string, value string, expiresAt int64) *Instance {
	in := newInstance(id, 0, "a", []PeerKey{"a"}, 0, value, value, nil, nil)
	in.Resolved = &value
	in.ExpiresAt = expiresAt
	return in
}

func TestStoreGCRemovesOnlyExpiredResolved(t *testing.T) {
	s := NewStore()
	now := time.Now()

	old := resolvedInstance("old", "x", now.Add(-time.Hour).Unix())
	fresh := resolvedInstance("fresh", "y", now.Unix())
	unresolved := newInstance("pending", 0, "a", []PeerKey{"a", "b"}, 0, "z", "z", nil, nil)

	s.Put(old)
	s.Put(fresh)
	s.Put(unresolved)

	removed := s.GC(now, 5*time.Minute)
	if removed != 1 {
		t.Fatalf("expected 1 instance removed, got %d", removed)
	}
	if _, ok := s.Get("old"); ok {
		t.Error("expired resolved instance should have been collected")
	}
	if _, ok := s.Get("fresh"); !ok {
		t.Error("fresh resolved instance should not have been collected")
	}
	if _, ok := s.Get("pending"); !ok {
		t.Error("unresolved instance should never be collected by GC")
	}
}

func TestStoreEnforceCapDropsOnlyResolved(t *testing.T) {
	s := NewStore()
	now := time.Now()

	s.Put(resolvedInstance("r1", "x", now.Unix()))
	s.Put(resolvedInstance("r2", "y", now.Unix()))
	s.Put(newInstance("pending", 0, "a", []PeerKey{"a", "b"}, 0, "z", "z", nil, nil))

	dropped := s.EnforceCap(1)
	if dropped != 2 {
		t.Fatalf("expected 2 instances dropped to reach cap of 1, got %d", dropped)
	}
	if s.Count() != 1 {
		t.Fatalf("expected 1 instance remaining, got %d", s.Count())
	}
	if _, ok := s.Get("pending"); !ok {
		t.Error("unresolved instance should never be dropped by EnforceCap")
	}
}

func TestStoreEnforceCapNoOpUnderCap(t *testing.T) {
	s := NewStore()
	s.Put(resolvedInstance("r1", "x", time.Now().Unix()))

	if dropped := s.EnforceCap(10); dropped != 0 {
		t.Fatalf("expected no drops under cap, got %d", dropped)
	}
}

func TestEngineForceDecideFallsBackToDefaultValue(t *testing.T) {
	self := PeerKey("solo")
	net := &network{engines: map[PeerKey]*Engine{}}
	eng := NewEngine(
		self, NewStore(), NewWordArray(),
		membership.New(stubResolver{}),
		faultinjector.New(faultinjector.SentinelValue),
		networkSender{net: net, from: self},
		&seqIDGen{}, newTestLogger(),
	)
	net.engines[self] = eng

	in := newInstance("stalled", 0, PeerKey("initiator"), []PeerKey{self, "b", "c"}, 1, "", "fallback", nil, nil)
	eng.Store().Put(in)

	eng.ForceDecide(in)

	if in.Resolved == nil || *in.Resolved != "fallback" {
		t.Fatalf("expected force-decide to fall back to default value, got %v", in.Resolved)
	}
	if got := eng.Words().Get(1); got != "fallback" {
		t.Fatalf("expected slot 1 = 'fallback', got %q", got)
	}
}
