package wire

import "testing"

func TestDecodeGossip(t *testing.T) {
	raw := []byte(`{"command":"GOSSIP","host":"10.0.0.1","port":9000,"name":"n1","id":"abc","cliPort":9001}`)

	msg, err := Decode(raw)
	if err != nil {
		t.Fatal(err)
	}

	g, ok := msg.(Gossip)
	if !ok {
		t.Fatalf("expected Gossip, got %T", msg)
	}
	if g.Host != "10.0.0.1" || g.Port != 9000 || g.ID != "abc" {
		t.Errorf("unexpected decode result: %+v", g)
	}
}

func TestDecodeConsensusRoundTrip(t *testing.T) {
	parent := "parent-1"
	reporter := "10.0.0.2:9000"
	original := Consensus{
		Command:      CommandConsensus,
		ID:           "id-1",
		OMLevel:      1,
		Initiator:    "10.0.0.1:9000",
		Peers:        []string{"10.0.0.1:9000", "10.0.0.2:9000"},
		Index:        2,
		Value:        "alpha",
		ParentID:     &parent,
		Reporter:     &reporter,
		DefaultValue: "alpha",
	}

	data, err := Encode(original)
	if err != nil {
		t.Fatal(err)
	}

	decoded, err := Decode(data)
	if err != nil {
		t.Fatal(err)
	}

	got, ok := decoded.(Consensus)
	if !ok {
		t.Fatalf("expected Consensus, got %T", decoded)
	}
	if got.ID != original.ID || got.Value != original.Value || *got.ParentID != *original.ParentID {
		t.Errorf("round trip mismatch: %+v vs %+v", got, original)
	}
}

func TestDecodeUnknownCommand(t *testing.T) {
	if _, err := Decode([]byte(`{"command":"BOGUS"}`)); err == nil {
		t.Fatal("expected error for unknown command")
	}
}

func TestDecodeMalformedJSON(t *testing.T) {
	if _, err := Decode([]byte(`not json`)); err == nil {
		t.Fatal("expected error for malformed JSON")
	}
}
