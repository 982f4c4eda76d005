package consensus

import (
	"errors"

	"go.uber.org/zap"

	"github.com/mcastellin/omnode/internal/faultinjector"
	"github.com/mcastellin/omnode/internal/membership"
	"github.com/mcastellin/omnode/internal/wire"
)

// ErrNoPeers is returned by StartRoot when no peers are known.
var ErrNoPeers = errors.New("consensus: no peers available")

// Sender delivers a CONSENSUS datagram to a single peer. Implementations
// are expected to swallow and log transport failures internally per the
// spec's error-handling policy — a send failure here never blocks or
// aborts the caller, it is simply one fewer delivered report.
type Sender interface {
	SendConsensus(to PeerKey, msg wire.Consensus) error
}

// IDGenerator produces a fresh unique instance id. The default
// implementation (see NewUUIDGenerator) uses google/uuid; tests supply a
// deterministic stub.
type IDGenerator interface {
	NewID() string
}

// Engine is the recursive OM consensus engine for one node.
type Engine struct {
	self    PeerKey
	store   *Store
	words   *WordArray
	members *membership.Table
	faults  *faultinjector.Injector
	sender  Sender
	ids     IDGenerator
	log     *zap.SugaredLogger
}

// NewEngine constructs a consensus Engine bound to the given node identity,
// collaborators, and transport.
func NewEngine(self PeerKey, store *Store, words *WordArray, members *membership.Table, faults *faultinjector.Injector, sender Sender, ids IDGenerator, log *zap.SugaredLogger) *Engine {
	return &Engine{
		self:    self,
		store:   store,
		words:   words,
		members: members,
		faults:  faults,
		sender:  sender,
		ids:     ids,
		log:     log,
	}
}

// StartRoot initiates agreement on one word-array slot with an honest
// value, per spec.md §4.3 start_root.
func (e *Engine) StartRoot(index int, value string) error {
	peers := e.participantSet()
	n := len(peers)
	if n == 0 {
		return ErrNoPeers
	}

	m := (n - 1) / 3
	id := e.ids.NewID()

	in := newInstance(id, m, e.self, peers, index, value, value, nil, nil)
	selfValue := e.faults.ChooseValue(value)
	in.RecordReport(e.self, selfValue)
	e.store.Put(in)

	// The initiator commits its own view eagerly: a root instance with
	// m=0 and more than one peer never naturally calls propagateUp on
	// itself (no participant relays anything back to the initiator at
	// leaf level), so without this the slot would only ever be set by
	// ForceDecide after a stall timeout. This matches the reference
	// implementation, which sets word_list unconditionally here.
	e.words.Set(index, selfValue)

	for _, peer := range peers {
		if peer == e.self {
			continue
		}
		peerValue := e.faults.ChooseValue(value)
		msg := consensusMessage(in, peerValue)
		if err := e.sender.SendConsensus(peer, msg); err != nil {
			e.log.Debugw("failed to send consensus datagram", "peer", peer, "id", id, "err", err)
		}
	}

	e.log.Infow("started root consensus", "id", id, "index", index, "value", selfValue, "m", m, "peers", n)
	return nil
}

// participantSet computes P = {self} ∪ known peers, per spec §4.3 step 1.
func (e *Engine) participantSet() []PeerKey {
	seen := map[PeerKey]struct{}{e.self: {}}
	peers := []PeerKey{e.self}
	for _, rec := range e.members.List() {
		if _, ok := seen[rec.Key]; ok {
			continue
		}
		seen[rec.Key] = struct{}{}
		peers = append(peers, rec.Key)
	}
	return peers
}

// HandleIncoming processes an inbound CONSENSUS datagram from src.
func (e *Engine) HandleIncoming(msg wire.Consensus, src PeerKey) {
	in, ok := e.store.Get(msg.ID)
	if !ok {
		in = e.seedFromMessage(msg)
		e.store.Put(in)
	}

	in.RecordReport(src, msg.Value)

	if in.OMLevel > 0 {
		e.spawnChild(in, src, msg.Value)
	} else {
		e.propagateUp(in.ID, src, msg.Value)
	}
}

// seedFromMessage creates a new locally-tracked instance from an inbound
// message naming an id this node has not seen before (spec §3 Lifecycle,
// invariant 2: the parent, if any, is assumed already present — callers
// arrive here only for CONSENSUS datagrams, whose sender is itself bound
// by that invariant).
func (e *Engine) seedFromMessage(msg wire.Consensus) *Instance {
	peers := make([]PeerKey, len(msg.Peers))
	for i, p := range msg.Peers {
		peers[i] = PeerKey(p)
	}
	var reporter *PeerKey
	if msg.Reporter != nil {
		r := PeerKey(*msg.Reporter)
		reporter = &r
	}
	return newInstance(msg.ID, msg.OMLevel, PeerKey(msg.Initiator), peers, msg.Index, msg.Value, msg.DefaultValue, msg.ParentID, reporter)
}

// spawnChild launches a sub-consensus among parent.Peers minus reporter,
// per spec §4.3 spawn_child. It is a no-op if a child for this reporter
// already exists (invariant 5, idempotent against retransmits).
func (e *Engine) spawnChild(parent *Instance, reporter PeerKey, receivedValue string) {
	if parent.HasLaunchedFor(reporter) {
		return
	}

	childPeers := PeersExcept(parent.Peers, reporter)
	if len(childPeers) == 0 {
		return
	}
	parent.MarkLaunched(reporter)

	childID := e.ids.NewID()
	selfValue := e.faults.ChooseValue(receivedValue)
	child := newInstance(childID, parent.OMLevel-1, parent.Initiator, childPeers, parent.Index, selfValue, parent.DefaultValue, &parent.ID, &reporter)
	child.RecordReport(e.self, selfValue)
	e.store.Put(child)

	for _, peer := range childPeers {
		if peer == e.self {
			continue
		}
		peerValue := e.faults.ChooseValue(receivedValue)
		msg := consensusMessage(child, peerValue)
		if err := e.sender.SendConsensus(peer, msg); err != nil {
			e.log.Debugw("failed to send sub-consensus datagram", "peer", peer, "id", childID, "err", err)
		}
	}

	e.propagateUp(parent.ID, e.self, selfValue)
}

// propagateUp records reporter's value at instanceID and, once that
// instance is complete, decides it and bubbles the result to the parent
// (or commits it to the word array at the root), per spec §4.3
// propagate_up.
func (e *Engine) propagateUp(instanceID string, reporter PeerKey, value string) {
	in, ok := e.store.Get(instanceID)
	if !ok {
		e.log.Warnw("propagate_up: unknown instance", "id", instanceID)
		return
	}

	in.RecordReport(reporter, value)
	if !in.IsComplete() {
		return
	}

	result := Decide(in)
	if result == nil {
		return
	}

	if in.ParentID != nil {
		parentReporter := reporter
		if in.Reporter != nil {
			parentReporter = *in.Reporter
		} else if in.Initiator != "" {
			parentReporter = in.Initiator
		}
		e.propagateUp(*in.ParentID, parentReporter, *result)
		return
	}

	if in.Index >= 0 && in.Index < WordArraySize {
		e.words.Set(in.Index, *result)
		e.log.Infow("consensus complete", "id", in.ID, "index", in.Index, "value", *result)
	}
}

// ForceDecide runs decide() over whatever reports an incomplete, stalled
// instance has accumulated (falling back to DefaultValue if it has none)
// and bubbles the forced result upward exactly like a normal decision.
// This realizes the design note on stalled instances: no peer timeout
// exists in the base protocol, so a node that never hears back from a
// silent peer would otherwise hold that slot open forever.
func (e *Engine) ForceDecide(in *Instance) {
	if in.Resolved != nil || in.IsComplete() {
		return
	}
	if len(in.Reports) == 0 {
		in.RecordReport(e.self, in.DefaultValue)
	}
	result := Decide(in)
	if result == nil {
		return
	}
	if in.ParentID != nil {
		parentReporter := e.self
		if in.Reporter != nil {
			parentReporter = *in.Reporter
		}
		e.propagateUp(*in.ParentID, parentReporter, *result)
		return
	}
	if in.Index >= 0 && in.Index < WordArraySize {
		e.words.Set(in.Index, *result)
		e.log.Warnw("consensus force-decided after stall", "id", in.ID, "index", in.Index, "value", *result)
	}
}

// consensusMessage builds the wire representation of in carrying value
// as this recipient's payload.
func consensusMessage(in *Instance, value string) wire.Consensus {
	peers := make([]string, len(in.Peers))
	for i, p := range in.Peers {
		peers[i] = string(p)
	}
	var reporter *string
	if in.Reporter != nil {
		r := string(*in.Reporter)
		reporter = &r
	}
	return wire.Consensus{
		Command:      wire.CommandConsensus,
		ID:           in.ID,
		OMLevel:      in.OMLevel,
		Initiator:    string(in.Initiator),
		Peers:        peers,
		Index:        in.Index,
		Value:        value,
		ParentID:     in.ParentID,
		Reporter:     reporter,
		DefaultValue: in.DefaultValue,
	}
}

// Words exposes the underlying word array for read access (e.g. from the
// console "current" command).
func (e *Engine) Words() *WordArray { return e.words }

// Store exposes the underlying instance store for read access (e.g. from
// the admin HTTP surface).
func (e *Engine) Store() *Store { return e.store }
