package packet

import (
	"bytes"
	"encoding/binary"
	"io"
)

// PUBCOMP is the third and final step of QoS 2 delivery, sent in response to
// a PUBREL; section 3.7. Under Method A the sender must reply with PUBCOMP
// unconditionally, even if the packet identifier is unknown.
type PUBCOMP struct {
	*FixedHeader

	PacketID uint16
}

func (pkt *PUBCOMP) Kind() byte { return KindPubcomp }

func (pkt *PUBCOMP) Pack(w io.Writer) error {
	pkt.RemainingLength = 2
	if err := pkt.FixedHeader.Pack(w); err != nil {
		return err
	}
	_, err := w.Write(i2b(pkt.PacketID))
	return err
}

func (pkt *PUBCOMP) Unpack(buf *bytes.Buffer) error {
	if pkt.RemainingLength != 2 || buf.Len() < 2 {
		return ErrMalformedPacket
	}
	pkt.PacketID = binary.BigEndian.Uint16(buf.Next(2))
	return nil
}
