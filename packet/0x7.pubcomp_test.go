package packet

import (
	"bytes"
	"testing"
)

func TestPubcompPackUnpackRoundTrip(t *testing.T) {
	pkt := &PUBCOMP{FixedHeader: &FixedHeader{Version: VERSION311, Kind: KindPubcomp}, PacketID: 77}
	var buf bytes.Buffer
	if err := pkt.Pack(&buf); err != nil {
		t.Fatalf("Pack() failed: %v", err)
	}

	fixed := &FixedHeader{Version: VERSION311}
	if err := fixed.Unpack(&buf); err != nil {
		t.Fatalf("FixedHeader.Unpack() failed: %v", err)
	}
	got := &PUBCOMP{FixedHeader: fixed}
	if err := got.Unpack(&buf); err != nil {
		t.Fatalf("Unpack() failed: %v", err)
	}
	if got.PacketID != pkt.PacketID {
		t.Errorf("PacketID = %d, want %d", got.PacketID, pkt.PacketID)
	}
}
