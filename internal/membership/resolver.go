package membership

import (
	"context"
	"net"
	"time"
)

// resolveTimeout bounds a single DNS lookup so a slow or unresponsive
// resolver can never stall the caller indefinitely, per §5's tolerated
// design weakness around blocking lookups on the hot path.
const resolveTimeout = 2 * time.Second

// Resolver resolves a hostname to a dotted-quad IPv4 address. DNS lookup of
// seed hostnames is treated as an injected collaborator so the membership
// table can be exercised without a real resolver in tests, and so a slow or
// failing lookup never blocks the node's single event loop indefinitely.
type Resolver interface {
	Resolve(host string) (string, error)
}

// netResolver is the default Resolver, backed by net.DefaultResolver.
type netResolver struct{}

// NewDefaultResolver returns a Resolver backed by the standard library's
// DNS resolution machinery.
func NewDefaultResolver() Resolver {
	return netResolver{}
}

// Resolve looks up the first IPv4 address for host. On a lookup failure it
// returns host unchanged together with the error; Table.Add and
// Table.ResolveKey then fall back to the host string (best effort) rather
// than failing.
func (netResolver) Resolve(host string) (string, error) {
	if ip := net.ParseIP(host); ip != nil {
		if v4 := ip.To4(); v4 != nil {
			return v4.String(), nil
		}
		return host, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), resolveTimeout)
	defer cancel()

	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return host, err
	}
	for _, a := range addrs {
		if v4 := a.IP.To4(); v4 != nil {
			return v4.String(), nil
		}
	}
	return host, nil
}
