package packet

import (
	"bytes"
	"io"
)

// PINGRESP is the server's answer to a PINGREQ; section 3.13. Its
// remaining length is canonically 0.
type PINGRESP struct {
	*FixedHeader
}

func (pkt *PINGRESP) Kind() byte { return KindPingresp }

func (pkt *PINGRESP) Pack(w io.Writer) error {
	pkt.RemainingLength = 0
	return pkt.FixedHeader.Pack(w)
}

func (pkt *PINGRESP) Unpack(_ *bytes.Buffer) error { return nil }
