// Package loop is the single-scheduler event loop described in spec.md
// §4.8/§5: it multiplexes the UDP socket, the console listener, and its
// accepted clients, and is the sole owner of Membership, the Gossip seen
// cache, the Consensus Store, and the Word Array.
package loop

import (
	"net"

	"github.com/mcastellin/omnode/internal/membership"
	"github.com/mcastellin/omnode/internal/wire"
)

// UDPTransport sends wire datagrams to peers over a single shared UDP
// socket, resolving each peer's "host:port" key back into a net.UDPAddr
// per send. It implements both gossip.Transport and consensus.Sender so
// the Loop can hand the same collaborator to both engines, mirroring how
// the teacher's Protocol owns one *net.UDPConn for all gossip sends.
type UDPTransport struct {
	conn *net.UDPConn
}

// NewUDPTransport wraps an already-bound UDP socket.
func NewUDPTransport(conn *net.UDPConn) *UDPTransport {
	return &UDPTransport{conn: conn}
}

func (t *UDPTransport) send(to membership.Key, v any) error {
	addr, err := net.ResolveUDPAddr("udp", string(to))
	if err != nil {
		return err
	}
	data, err := wire.Encode(v)
	if err != nil {
		return err
	}
	_, err = t.conn.WriteToUDP(data, addr)
	return err
}

// SendGossip implements gossip.Transport.
func (t *UDPTransport) SendGossip(to membership.Key, msg wire.Gossip) error {
	return t.send(to, msg)
}

// SendGossipReply implements gossip.Transport.
func (t *UDPTransport) SendGossipReply(to membership.Key, msg wire.GossipReply) error {
	return t.send(to, msg)
}

// SendConsensus implements consensus.Sender.
func (t *UDPTransport) SendConsensus(to membership.Key, msg wire.Consensus) error {
	return t.send(to, msg)
}
