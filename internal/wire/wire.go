// Package wire implements the UDP datagram codec for the peer protocol:
// the GOSSIP, GOSSIP_REPLY and CONSENSUS message variants, each a single
// JSON object tagged with a command field.
package wire

import (
	"encoding/json"
	"fmt"
)

// MaxDatagramSize is the largest payload this node will accept: the size
// of the UDP read buffer, so oversized inbound reads are truncated before
// they ever reach Decode. Encode does not check outgoing payloads against it.
const MaxDatagramSize = 4096

const (
	CommandGossip      = "GOSSIP"
	CommandGossipReply = "GOSSIP_REPLY"
	CommandConsensus   = "CONSENSUS"
)

// envelope is used only to sniff the command tag before picking a concrete
// type to unmarshal into.
type envelope struct {
	Command string `json:"command"`
}

// Gossip announces a peer's presence (or heartbeat) to the network.
type Gossip struct {
	Command string `json:"command"`
	Host    string `json:"host"`
	Port    int    `json:"port"`
	Name    string `json:"name"`
	ID      string `json:"id"`
	CliPort int    `json:"cliPort"`
}

// GossipReply is unicast back to a peer on first contact.
type GossipReply struct {
	Command string `json:"command"`
	Host    string `json:"host"`
	Port    int    `json:"port"`
	Name    string `json:"name"`
	ID      string `json:"id"`
	CliPort int    `json:"cliPort"`
}

// Consensus carries one report for one OM consensus instance.
type Consensus struct {
	Command      string   `json:"command"`
	ID           string   `json:"id"`
	OMLevel      int      `json:"omlevel"`
	Initiator    string   `json:"initiator"`
	Peers        []string `json:"peers"`
	Index        int      `json:"index"`
	Value        string   `json:"value"`
	ParentID     *string  `json:"parentid,omitempty"`
	Reporter     *string  `json:"reporter,omitempty"`
	DefaultValue string   `json:"default_value,omitempty"`
}

// Decode inspects the command tag of a raw datagram and unmarshals it into
// the matching concrete type. An unrecognized command or malformed JSON is
// reported as an error; the caller is expected to log and drop the datagram,
// never to propagate the error as a protocol fault to the sender.
func Decode(data []byte) (any, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("wire: malformed datagram: %w", err)
	}

	switch env.Command {
	case CommandGossip:
		var m Gossip
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("wire: malformed GOSSIP: %w", err)
		}
		return m, nil
	case CommandGossipReply:
		var m GossipReply
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("wire: malformed GOSSIP_REPLY: %w", err)
		}
		return m, nil
	case CommandConsensus:
		var m Consensus
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("wire: malformed CONSENSUS: %w", err)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("wire: unknown command %q", env.Command)
	}
}

// Encode marshals any of the wire variants back to its JSON datagram form.
func Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}
