package packet

import (
	"bytes"
	"encoding/binary"
	"io"
)

// UNSUBSCRIBE removes a single topic filter subscription; section 3.10.
// Like SUBSCRIBE its header flags are fixed at DUP=0, QoS=1, RETAIN=0.
type UNSUBSCRIBE struct {
	*FixedHeader

	PacketID    uint16
	TopicFilter string
}

func (pkt *UNSUBSCRIBE) Kind() byte { return KindUnsubscribe }

func (pkt *UNSUBSCRIBE) Pack(w io.Writer) error {
	if pkt.TopicFilter == "" {
		return ErrProtocolViolation
	}

	pkt.QoS = 1
	buf := GetBuffer()
	defer PutBuffer(buf)

	buf.Write(i2b(pkt.PacketID))
	buf.Write(s2b(pkt.TopicFilter))

	pkt.RemainingLength = uint32(buf.Len())
	if err := pkt.FixedHeader.Pack(w); err != nil {
		return err
	}
	_, err := buf.WriteTo(w)
	return err
}

func (pkt *UNSUBSCRIBE) Unpack(buf *bytes.Buffer) error {
	if buf.Len() < 2 {
		return ErrMalformedPacket
	}
	pkt.PacketID = binary.BigEndian.Uint16(buf.Next(2))

	if buf.Len() < 2 {
		return ErrMalformedPacket
	}
	pkt.TopicFilter = decodeUTF8[string](buf)
	if pkt.TopicFilter == "" {
		return ErrProtocolViolation
	}
	return nil
}
