package membership

import "testing"

// TestDefaultResolverDoesNotPanicOnNonIPHost guards against a nil context
// reaching net.DefaultResolver.LookupIPAddr: msg.Host in an inbound
// GOSSIP/GOSSIP_REPLY is attacker-controlled, so a non-IP host must
// resolve (or fail) without ever panicking the caller.
func TestDefaultResolverDoesNotPanicOnNonIPHost(t *testing.T) {
	r := NewDefaultResolver()

	defer func() {
		if rec := recover(); rec != nil {
			t.Fatalf("Resolve panicked on a non-IP host: %v", rec)
		}
	}()

	// The lookup may succeed or fail depending on the test environment's
	// network access; either is fine, a panic is not.
	if _, err := r.Resolve("this.host.does.not.exist.invalid"); err != nil {
		t.Logf("resolve failed as expected in a sandboxed environment: %v", err)
	}
}

func TestDefaultResolverReturnsDottedQuadUnchanged(t *testing.T) {
	r := NewDefaultResolver()
	got, err := r.Resolve("10.0.0.5")
	if err != nil {
		t.Fatal(err)
	}
	if got != "10.0.0.5" {
		t.Fatalf("Resolve(%q) = %q", "10.0.0.5", got)
	}
}
