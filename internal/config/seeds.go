package config

// WellKnownSeeds is the built-in list of seed endpoints contacted once at
// startup, before any peer is known through gossip. Per spec this is a
// hardcoded constant; operators wanting different seeds rebuild the binary,
// or add SeedNodes to a config file for additional seeds layered on top.
var WellKnownSeeds = []Seed{
	{Host: "seed0.omnode.local", Port: 10000},
	{Host: "seed1.omnode.local", Port: 10000},
	{Host: "seed2.omnode.local", Port: 10000},
	{Host: "seed3.omnode.local", Port: 10000},
}

// Seed is a well-known or operator-supplied bootstrap peer.
type Seed struct {
	Host string
	Port int
}
