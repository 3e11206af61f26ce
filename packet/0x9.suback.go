package packet

import (
	"bytes"
	"encoding/binary"
	"io"
)

// SUBACK confirms a SUBSCRIBE, carrying one granted-QoS (or failure) byte
// per requested filter; section 3.9. This engine sends one filter per
// SUBSCRIBE, so the payload here is always exactly one byte.
type SUBACK struct {
	*FixedHeader

	PacketID   uint16
	ReturnCode uint8 // 0x00-0x02 granted QoS, 0x80 failure (SubackFailure)
}

func (pkt *SUBACK) Kind() byte { return KindSuback }

func (pkt *SUBACK) Pack(w io.Writer) error {
	buf := GetBuffer()
	defer PutBuffer(buf)

	buf.Write(i2b(pkt.PacketID))
	buf.WriteByte(pkt.ReturnCode)

	pkt.RemainingLength = uint32(buf.Len())
	if err := pkt.FixedHeader.Pack(w); err != nil {
		return err
	}
	_, err := buf.WriteTo(w)
	return err
}

func (pkt *SUBACK) Unpack(buf *bytes.Buffer) error {
	if pkt.RemainingLength != 3 || buf.Len() < 3 {
		return ErrMalformedPacket
	}
	pkt.PacketID = binary.BigEndian.Uint16(buf.Next(2))
	// A return code outside {0,1,2,0x80} is a per-subscription fault, not a
	// connection-level one. Unlike CONNACK's reserved-bits check, this
	// packet never fails Unpack on an unexpected ReturnCode value; the
	// engine's SUBACK finalizer marks the affected subscription Error instead.
	pkt.ReturnCode = buf.Next(1)[0]
	return nil
}
