// Package faultinjector lets a node optionally lie about the values it
// reports into consensus instances, to exercise the OM protocol's
// Byzantine fault tolerance. Grounded on the reference omnode's
// choose_value: a lie_mode flag and a lie_rate probability, sampled
// independently per outgoing edge so a faulty node can tell different
// peers different things within the same instance.
package faultinjector

import "math/rand"

// Mode selects which faulty value a lying node substitutes.
type Mode int

const (
	// SentinelValue always substitutes the same fixed faulty value.
	// This matches the later revision of the reference implementation,
	// which settled on a single constant rather than a random set.
	SentinelValue Mode = iota
	// RandomSet substitutes a uniformly chosen value from a small fixed
	// set, which is more faithful to Byzantine equivocation: a liar can
	// send genuinely distinct claims to distinct recipients.
	RandomSet
)

const sentinelFaultValue = "faulty_attack"

var equivocationSet = []string{
	"faulty_attack",
	"rogue_value",
	"poisoned",
	"nonsense",
	"decoy",
}

// Injector holds the live lying configuration for a node.
type Injector struct {
	Mode    Mode
	LieMode bool
	LieRate float64 // in [0, 1]
}

// New creates an Injector that tells the truth by default.
func New(mode Mode) *Injector {
	return &Injector{Mode: mode, LieMode: false, LieRate: 1.0}
}

// SetLying enables or disables lying and sets the rate, clamped to [0, 1].
func (f *Injector) SetLying(enabled bool, rate float64) {
	if rate < 0 {
		rate = 0
	}
	if rate > 1 {
		rate = 1
	}
	f.LieMode = enabled
	f.LieRate = rate
}

// ChooseValue returns honest unless lying is enabled and an independent
// coin flip at LieRate comes up heads, in which case it returns a faulty
// value instead. Each call is an independent draw, so calling this once
// per outgoing edge lets a Byzantine node equivocate across recipients.
func (f *Injector) ChooseValue(honest string) string {
	if !f.LieMode {
		return honest
	}
	if rand.Float64() > f.LieRate {
		return honest
	}
	if f.Mode == RandomSet {
		return equivocationSet[rand.Intn(len(equivocationSet))]
	}
	return sentinelFaultValue
}
