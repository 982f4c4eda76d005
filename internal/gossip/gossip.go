// Package gossip implements epidemic peer discovery: announcing this
// node to seeds, replying on first contact, forwarding announcements to
// a capped random subset of known peers, and periodic heartbeats. It is
// the membership-dissemination layer the consensus engine's participant
// set is built from.
//
// Adapted from the teacher's Protocol (UDP transport, JSON wire
// messages, goroutine-per-concern shape), but Engine itself owns no
// goroutines and does no socket I/O: per the single-scheduler
// concurrency model, sends and receives are driven synchronously by the
// owner goroutine in internal/loop, with a Transport collaborator doing
// the actual datagram write.
package gossip

import (
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/mcastellin/omnode/internal/membership"
	"github.com/mcastellin/omnode/internal/wire"
)

// ForwardFanout caps how many peers a single gossip announcement is
// relayed to, matching gossip.py's forward_gossip.
const ForwardFanout = 5

// PeerKey aliases the membership package's peer identity.
type PeerKey = membership.Key

// Transport sends gossip datagrams to a peer. A send failure is logged
// and swallowed by the caller; it is never retried.
type Transport interface {
	SendGossip(to PeerKey, msg wire.Gossip) error
	SendGossipReply(to PeerKey, msg wire.GossipReply) error
}

// Identity is this node's own announceable information.
type Identity struct {
	Host    string
	Port    int
	Name    string
	CliPort int
}

// Engine runs the gossip protocol for one node.
type Engine struct {
	self      Identity
	selfKey   PeerKey
	members   *membership.Table
	seen      *SeenCache
	ids       *IDGenerator
	transport Transport
	log       *zap.SugaredLogger
}

// NewEngine constructs a gossip Engine.
func NewEngine(selfKey PeerKey, self Identity, members *membership.Table, transport Transport, log *zap.SugaredLogger) *Engine {
	return &Engine{
		self:      self,
		selfKey:   selfKey,
		members:   members,
		seen:      NewSeenCache(),
		ids:       NewIDGenerator(string(selfKey)),
		transport: transport,
		log:       log,
	}
}

// SetGossipTTL overrides the duplicate-suppression window of the
// underlying SeenCache, letting a node's config.GossipTTL drive it
// instead of the package default.
func (e *Engine) SetGossipTTL(ttl time.Duration) {
	e.seen.SetTTL(ttl)
}

// Announce sends a GOSSIP datagram introducing this node to each seed,
// used once at startup before any peer is known through gossip.
func (e *Engine) Announce(seeds []PeerKey) {
	msg := e.buildGossip()
	for _, peer := range seeds {
		if peer == e.selfKey {
			continue
		}
		if err := e.transport.SendGossip(peer, msg); err != nil {
			e.log.Debugw("failed to announce to seed", "peer", peer, "err", err)
		}
	}
}

// Heartbeat sends a GOSSIP datagram to a random subset of known peers,
// capped at ForwardFanout, per node.py's heartbeat().
func (e *Engine) Heartbeat() {
	peers := e.members.Keys()
	shuffle(peers)
	msg := e.buildGossip()
	for _, peer := range firstN(peers, ForwardFanout) {
		if err := e.transport.SendGossip(peer, msg); err != nil {
			e.log.Debugw("failed to send heartbeat", "peer", peer, "err", err)
		}
	}
}

// HandleGossip processes an inbound GOSSIP datagram, per gossip.py's
// handle_gossip: membership is keyed off the payload's host/port fields
// (not the UDP datagram source, per spec's resolved host-vs-source
// design note), duplicate ids are suppressed, and a reply is sent only
// on first contact with the sender.
func (e *Engine) HandleGossip(msg wire.Gossip, now time.Time) {
	key := e.members.ResolveKey(msg.Host, uint16(msg.Port))
	existing := e.members.Has(key)
	e.members.Add(msg.Host, uint16(msg.Port), msg.Name, now)

	if alreadySeen := e.seen.MarkSeen(msg.ID, now); !alreadySeen {
		e.forward(msg, key)
	}

	if !existing {
		e.sendReply(key)
	}
}

// HandleGossipReply processes an inbound GOSSIP_REPLY. A reply only
// updates membership; it is a leaf message and never forwarded or
// re-replied to.
func (e *Engine) HandleGossipReply(msg wire.GossipReply, now time.Time) {
	e.members.Add(msg.Host, uint16(msg.Port), msg.Name, now)
}

// forward relays msg to a random subset of known peers, excluding the
// original sender, capped at ForwardFanout.
func (e *Engine) forward(msg wire.Gossip, source PeerKey) {
	peers := e.members.Keys()
	shuffle(peers)

	sent := 0
	for _, peer := range peers {
		if sent >= ForwardFanout {
			break
		}
		if peer == source || peer == e.selfKey {
			continue
		}
		if err := e.transport.SendGossip(peer, msg); err != nil {
			e.log.Debugw("failed to forward gossip", "peer", peer, "err", err)
			continue
		}
		sent++
	}
}

// sendReply unicasts a GOSSIP_REPLY back to a peer met for the first
// time, carrying this node's own identity.
func (e *Engine) sendReply(to PeerKey) {
	reply := wire.GossipReply{
		Command: wire.CommandGossipReply,
		Host:    e.self.Host,
		Port:    e.self.Port,
		Name:    e.self.Name,
		ID:      e.ids.NewID(),
		CliPort: e.self.CliPort,
	}
	if err := e.transport.SendGossipReply(to, reply); err != nil {
		e.log.Debugw("failed to send gossip reply", "peer", to, "err", err)
	}
}

// buildGossip constructs a fresh GOSSIP datagram announcing this node.
func (e *Engine) buildGossip() wire.Gossip {
	return wire.Gossip{
		Command: wire.CommandGossip,
		Host:    e.self.Host,
		Port:    e.self.Port,
		Name:    e.self.Name,
		ID:      e.ids.NewID(),
		CliPort: e.self.CliPort,
	}
}

func shuffle(keys []PeerKey) {
	rand.Shuffle(len(keys), func(i, j int) { keys[i], keys[j] = keys[j], keys[i] })
}

func firstN(keys []PeerKey, n int) []PeerKey {
	if len(keys) <= n {
		return keys
	}
	return keys[:n]
}
