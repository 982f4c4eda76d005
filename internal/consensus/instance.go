// Package consensus implements the recursive Oral-Messaging (OM)
// Byzantine agreement engine: multi-level consensus instances with
// parent/child propagation, lieutenant sub-consensus spawned per
// reporter, and plurality-with-lexicographic-tie-break decisions that
// bubble results back up to the root.
//
// There is no teacher analog for this package — the source repo is a
// key-value store, not a Byzantine agreement protocol — so the shape
// here is built directly from the specification and cross-checked
// against the reference omnode Python implementation
// (consensus.py / consensus_state.py), while following the teacher's
// conventions for package layout, guarded state, and error handling.
package consensus

import "github.com/mcastellin/omnode/internal/membership"

// PeerKey aliases the membership package's peer identity so consensus
// code reads naturally without importing membership everywhere it
// names a participant.
type PeerKey = membership.Key

// Instance is a single OM consensus instance: either a root, initiated
// locally by an operator action, or a child spawned to verify what some
// reporter claimed at the parent level.
type Instance struct {
	ID                   string
	OMLevel              int
	Initiator            PeerKey
	Peers                []PeerKey
	Index                int
	Value                string
	DefaultValue         string
	ParentID             *string
	Reporter             *PeerKey
	Reports              map[PeerKey]string
	Resolved             *string
	SubconsensusLaunched map[PeerKey]struct{}
	ExpiresAt            int64 // unix seconds; 0 means no forced-decide deadline set
}

// newInstance builds a fresh Instance with empty report/launch tracking.
func newInstance(id string, omlevel int, initiator PeerKey, peers []PeerKey, index int, value, defaultValue string, parentID *string, reporter *PeerKey) *Instance {
	return &Instance{
		ID:                   id,
		OMLevel:              omlevel,
		Initiator:            initiator,
		Peers:                append([]PeerKey(nil), peers...),
		Index:                index,
		Value:                value,
		DefaultValue:         defaultValue,
		ParentID:             parentID,
		Reporter:             reporter,
		Reports:              make(map[PeerKey]string),
		SubconsensusLaunched: make(map[PeerKey]struct{}),
	}
}

// RecordReport stores reporter's value for this instance. Per invariant
// 3, this is idempotent against retransmits: the same reporter may
// record repeatedly and the last write wins.
func (in *Instance) RecordReport(reporter PeerKey, value string) {
	in.Reports[reporter] = value
}

// IsComplete reports whether every participant in Peers has a recorded
// report.
func (in *Instance) IsComplete() bool {
	for _, p := range in.Peers {
		if _, ok := in.Reports[p]; !ok {
			return false
		}
	}
	return true
}

// HasLaunchedFor reports whether a child has already been spawned for
// reporter, guarding against duplicate subtrees from retransmits.
func (in *Instance) HasLaunchedFor(reporter PeerKey) bool {
	_, ok := in.SubconsensusLaunched[reporter]
	return ok
}

// MarkLaunched records that a child has been spawned for reporter.
func (in *Instance) MarkLaunched(reporter PeerKey) {
	in.SubconsensusLaunched[reporter] = struct{}{}
}

// PeersExcept returns in.Peers with excluded removed.
func PeersExcept(peers []PeerKey, excluded PeerKey) []PeerKey {
	out := make([]PeerKey, 0, len(peers))
	for _, p := range peers {
		if p != excluded {
			out = append(out, p)
		}
	}
	return out
}
