package packet

import (
	"bytes"
	"encoding/binary"
	"io"
)

// PUBREL is the second step of QoS 2 delivery, sent after a PUBREC; section
// 3.6. MQTT-3.6.1-1 fixes its header flags at DUP=0, QoS=1, RETAIN=0 — the
// only control packet besides SUBSCRIBE/UNSUBSCRIBE with a mandatory flag
// nibble.
type PUBREL struct {
	*FixedHeader

	PacketID uint16
}

func (pkt *PUBREL) Kind() byte { return KindPubrel }

func (pkt *PUBREL) Pack(w io.Writer) error {
	pkt.QoS = 1
	pkt.RemainingLength = 2
	if err := pkt.FixedHeader.Pack(w); err != nil {
		return err
	}
	_, err := w.Write(i2b(pkt.PacketID))
	return err
}

func (pkt *PUBREL) Unpack(buf *bytes.Buffer) error {
	if pkt.RemainingLength != 2 || buf.Len() < 2 {
		return ErrMalformedPacket
	}
	pkt.PacketID = binary.BigEndian.Uint16(buf.Next(2))
	return nil
}
