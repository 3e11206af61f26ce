package packet

import (
	"bytes"
	"encoding/binary"
	"io"
)

// PUBACK is the QoS 1 publish acknowledgement; section 3.4. The variable
// header is a bare packet identifier and nothing else.
type PUBACK struct {
	*FixedHeader

	PacketID uint16
}

func (pkt *PUBACK) Kind() byte { return KindPuback }

func (pkt *PUBACK) Pack(w io.Writer) error {
	pkt.RemainingLength = 2
	if err := pkt.FixedHeader.Pack(w); err != nil {
		return err
	}
	_, err := w.Write(i2b(pkt.PacketID))
	return err
}

func (pkt *PUBACK) Unpack(buf *bytes.Buffer) error {
	if pkt.RemainingLength != 2 || buf.Len() < 2 {
		return ErrMalformedPacket
	}
	pkt.PacketID = binary.BigEndian.Uint16(buf.Next(2))
	return nil
}
