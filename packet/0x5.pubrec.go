package packet

import (
	"bytes"
	"encoding/binary"
	"io"
)

// PUBREC is the first acknowledgement of a QoS 2 PUBLISH; section 3.5. Its
// wire shape is identical to PUBACK — a bare packet identifier — but it is a
// distinct type since the two drive different steps: PUBACK ends a QoS 1
// exchange, while PUBREC moves a QoS 2 exchange on to await PUBCOMP.
type PUBREC struct {
	*FixedHeader

	PacketID uint16
}

func (pkt *PUBREC) Kind() byte { return KindPubrec }

func (pkt *PUBREC) Pack(w io.Writer) error {
	pkt.RemainingLength = 2
	if err := pkt.FixedHeader.Pack(w); err != nil {
		return err
	}
	_, err := w.Write(i2b(pkt.PacketID))
	return err
}

func (pkt *PUBREC) Unpack(buf *bytes.Buffer) error {
	if pkt.RemainingLength != 2 || buf.Len() < 2 {
		return ErrMalformedPacket
	}
	pkt.PacketID = binary.BigEndian.Uint16(buf.Next(2))
	return nil
}
