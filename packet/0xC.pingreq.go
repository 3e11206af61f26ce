package packet

import (
	"bytes"
	"io"
)

// PINGREQ is sent by the client to keep the connection alive and verify the
// network path is still up; section 3.12. No variable header, no payload.
type PINGREQ struct {
	*FixedHeader
}

func (pkt *PINGREQ) Kind() byte { return KindPingreq }

func (pkt *PINGREQ) Pack(w io.Writer) error {
	pkt.RemainingLength = 0
	return pkt.FixedHeader.Pack(w)
}

func (pkt *PINGREQ) Unpack(_ *bytes.Buffer) error { return nil }
