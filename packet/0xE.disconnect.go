package packet

import (
	"bytes"
	"io"
)

// DISCONNECT is the client's notice of a clean shutdown; section 3.14. In
// v3.1.1 it carries no reason code or properties — those are v5 additions —
// so this is the simplest packet in the codec.
type DISCONNECT struct {
	*FixedHeader
}

func (pkt *DISCONNECT) Kind() byte { return KindDisconnect }

func (pkt *DISCONNECT) Pack(w io.Writer) error {
	pkt.RemainingLength = 0
	return pkt.FixedHeader.Pack(w)
}

func (pkt *DISCONNECT) Unpack(_ *bytes.Buffer) error { return nil }
