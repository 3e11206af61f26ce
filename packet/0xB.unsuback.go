package packet

import (
	"bytes"
	"encoding/binary"
	"io"
)

// UNSUBACK confirms an UNSUBSCRIBE; section 3.11. No payload beyond the
// packet identifier in v3.1.1 — unlike SUBACK there is no per-filter status
// byte, since unsubscribing cannot fail at the protocol level.
type UNSUBACK struct {
	*FixedHeader

	PacketID uint16
}

func (pkt *UNSUBACK) Kind() byte { return KindUnsuback }

func (pkt *UNSUBACK) Pack(w io.Writer) error {
	pkt.RemainingLength = 2
	if err := pkt.FixedHeader.Pack(w); err != nil {
		return err
	}
	_, err := w.Write(i2b(pkt.PacketID))
	return err
}

func (pkt *UNSUBACK) Unpack(buf *bytes.Buffer) error {
	if pkt.RemainingLength != 2 || buf.Len() < 2 {
		return ErrMalformedPacket
	}
	pkt.PacketID = binary.BigEndian.Uint16(buf.Next(2))
	return nil
}
