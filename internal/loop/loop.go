package loop

import (
	"context"
	"fmt"
	"net"
	"runtime/debug"
	"time"

	"go.uber.org/zap"

	"github.com/mcastellin/omnode/internal/config"
	"github.com/mcastellin/omnode/internal/consensus"
	"github.com/mcastellin/omnode/internal/console"
	"github.com/mcastellin/omnode/internal/gossip"
	"github.com/mcastellin/omnode/internal/membership"
	"github.com/mcastellin/omnode/internal/wire"
)

// udpPacket is a decoded-later datagram handed from the UDP reader
// goroutine to the owner goroutine.
type udpPacket struct {
	data []byte
	addr *net.UDPAddr
}

// Loop is the owner goroutine grounded on node.py's run(): check cleanup
// due, check heartbeat due, block for the next readiness event with a 1s
// ceiling, dispatch, repeat. Go has no single select() over heterogeneous
// fds, so the suspension points the teacher's receiveLoop/gossipLoop split
// already models — one reader goroutine per socket kind, each forwarding
// decoded work onto a channel — stand in for it; this struct is the single
// goroutine that drains those channels and is the only thing that ever
// touches Membership, the Consensus Store, or the Word Array.
type Loop struct {
	cfg      *config.Config
	conn     *net.UDPConn
	consoleL *console.Listener

	members *membership.Table
	gossipE *gossip.Engine
	engine  *consensus.Engine
	console *console.Handler

	udpEvents chan udpPacket
	done      chan struct{}
	log       *zap.SugaredLogger

	lastCleanup   time.Time
	lastHeartbeat time.Time
}

// New builds a Loop from its bound sockets and already-constructed
// collaborators.
func New(cfg *config.Config, conn *net.UDPConn, consoleL *console.Listener, members *membership.Table, gossipE *gossip.Engine, engine *consensus.Engine, consoleH *console.Handler, log *zap.SugaredLogger) *Loop {
	return &Loop{
		cfg:       cfg,
		conn:      conn,
		consoleL:  consoleL,
		members:   members,
		gossipE:   gossipE,
		engine:    engine,
		console:   consoleH,
		udpEvents: make(chan udpPacket, 64),
		done:      make(chan struct{}),
		log:       log,
	}
}

// Run announces this node to its seeds and then drives the event loop
// until ctx is cancelled. It blocks.
func (l *Loop) Run(ctx context.Context, seeds []membership.Key) {
	go l.readUDP()
	go l.consoleL.Serve()

	l.gossipE.Announce(seeds)

	now := time.Now()
	l.lastCleanup = now
	l.lastHeartbeat = now

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			close(l.done)
			return
		case pkt := <-l.udpEvents:
			l.safely("handleUDP", func() { l.handleUDP(pkt) })
		case ev := <-l.consoleL.Events():
			l.safely("handleConsole", func() { l.handleConsole(ev) })
		case now := <-ticker.C:
			l.safely("tick", func() { l.tick(now) })
		}
	}
}

// safely runs fn and recovers any panic it raises, logging it and letting
// the loop continue, per spec.md §4.5 "Exceptions in a handler are logged
// and the loop continues" and §7's "the engine must never crash a peer on
// protocol error from another node" — a malformed or adversarial datagram
// must never take the owner goroutine down.
func (l *Loop) safely(handler string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Errorw("recovered from panic in handler", "handler", handler, "panic", r, "stack", string(debug.Stack()))
		}
	}()
	fn()
}

// Close releases the owned sockets. Safe to call after Run returns.
func (l *Loop) Close() {
	l.conn.Close()
	l.consoleL.Close()
}

// readUDP is the dedicated reader goroutine for the peer socket: it never
// touches core state, it only decodes readiness into a queued packet, per
// §5's "suspension points are exactly... reading a single datagram".
func (l *Loop) readUDP() {
	buf := make([]byte, wire.MaxDatagramSize)
	for {
		n, addr, err := l.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-l.done:
				return
			default:
			}
			l.log.Debugw("udp read error", "err", err)
			continue
		}
		data := make([]byte, n)
		copy(data, buf[:n])
		select {
		case l.udpEvents <- udpPacket{data: data, addr: addr}:
		case <-l.done:
			return
		}
	}
}

// handleUDP decodes and dispatches one datagram by command tag, per
// spec.md §6: malformed JSON or an unrecognized command is logged and
// dropped, never propagated as a fault to the sender.
func (l *Loop) handleUDP(pkt udpPacket) {
	msg, err := wire.Decode(pkt.data)
	if err != nil {
		l.log.Debugw("dropping malformed datagram", "from", pkt.addr, "err", err)
		return
	}

	now := time.Now()
	switch m := msg.(type) {
	case wire.Gossip:
		l.gossipE.HandleGossip(m, now)
	case wire.GossipReply:
		l.gossipE.HandleGossipReply(m, now)
	case wire.Consensus:
		// spec.md §4.3 handle_incoming step 1: upsert the datagram
		// source into Membership, keyed off the UDP source address
		// itself (CONSENSUS payloads carry no host/port of their own,
		// unlike GOSSIP, so there is no payload field to prefer here).
		src, _ := l.members.Add(pkt.addr.IP.String(), uint16(pkt.addr.Port), "", now)
		l.engine.HandleIncoming(m, src)
	default:
		l.log.Debugw("dropping datagram of unhandled decoded type", "from", pkt.addr)
	}
}

// handleConsole runs one decoded console line through the command
// handler and writes the response back to its connection.
func (l *Loop) handleConsole(ev console.Event) {
	resp, closeConn := l.console.Handle(ev.Line)
	if _, err := ev.Conn.Write([]byte(resp)); err != nil {
		l.log.Debugw("console write failed", "err", err)
	}
	if closeConn {
		ev.Conn.Close()
	}
}

// tick runs the two periodic timers described in spec.md §4.5: peer
// cleanup at CleanupInterval, heartbeat at HeartbeatInterval, both
// checked (not necessarily fired) on every 1s wake-up.
func (l *Loop) tick(now time.Time) {
	if now.Sub(l.lastCleanup) >= l.cfg.CleanupInterval {
		l.cleanup(now)
		l.lastCleanup = now
	}
	if now.Sub(l.lastHeartbeat) >= l.cfg.HeartbeatInterval {
		l.gossipE.Heartbeat()
		l.lastHeartbeat = now
	}
}

// cleanup evicts stale peers and realizes both Open Questions resolved in
// SPEC_FULL.md §9: stalled instances are force-decided once their stall
// deadline passes, and resolved instances are garbage collected once
// their GC grace period passes, with a cap on resolved instances as a
// backstop. Instance.ExpiresAt holds the stall deadline while an instance
// is unresolved and, once it is resolved, the time its GC grace period is
// counted from (the stall deadline of a force-decided instance, otherwise
// the first tick that sees it resolved). It is stamped lazily on the first
// cleanup tick that observes the instance rather than at creation time,
// since consensus.Instance carries no clock of its own — see DESIGN.md.
func (l *Loop) cleanup(now time.Time) {
	evicted := l.members.EvictStale(now)
	for _, k := range evicted {
		l.log.Infow("peer evicted as stale", "peer", k)
	}

	for _, in := range l.engine.Store().All() {
		if in.Resolved != nil {
			if in.ExpiresAt == 0 {
				in.ExpiresAt = now.Unix()
			}
			continue
		}
		if in.ExpiresAt == 0 {
			in.ExpiresAt = now.Add(l.cfg.StallTimeout).Unix()
			continue
		}
		if now.Unix() >= in.ExpiresAt {
			l.engine.ForceDecide(in)
		}
	}

	if removed := l.engine.Store().GC(now, l.cfg.InstanceGCGrace); removed > 0 {
		l.log.Infow("garbage collected resolved consensus instances", "count", removed)
	}
	if dropped := l.engine.Store().EnforceCap(l.cfg.MaxInstances); dropped > 0 {
		l.log.Warnw("dropped resolved consensus instances to enforce cap", "count", dropped)
	}
}

// SeedKeys turns the configured well-known and operator-supplied seeds
// into membership keys without pre-resolving them: UDPTransport resolves
// hostnames lazily at send time via net.ResolveUDPAddr, so a seed key can
// carry a hostname straight through.
func SeedKeys(seeds []config.Seed, extra []string) []membership.Key {
	out := make([]membership.Key, 0, len(seeds)+len(extra))
	for _, s := range seeds {
		out = append(out, membership.Key(fmt.Sprintf("%s:%d", s.Host, s.Port)))
	}
	for _, addr := range extra {
		out = append(out, membership.Key(addr))
	}
	return out
}
