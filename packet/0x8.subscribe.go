package packet

import (
	"bytes"
	"encoding/binary"
	"io"
)

// SUBSCRIBE requests a subscription to a single topic filter; section 3.8.
// MQTT-3.8.1-1 fixes its header flags at DUP=0, QoS=1, RETAIN=0.
//
// The wire format allows a payload of several (filter, QoS) pairs in one
// packet; this engine always sends exactly one, matching the one
// subscription request in, one SUBACK grant out model of the subscription
// registry.
type SUBSCRIBE struct {
	*FixedHeader

	PacketID    uint16
	TopicFilter string
	QoSWanted   uint8
}

func (pkt *SUBSCRIBE) Kind() byte { return KindSubscribe }

func (pkt *SUBSCRIBE) Pack(w io.Writer) error {
	if pkt.TopicFilter == "" {
		return ErrProtocolViolation
	}

	pkt.QoS = 1
	buf := GetBuffer()
	defer PutBuffer(buf)

	buf.Write(i2b(pkt.PacketID))
	buf.Write(s2b(pkt.TopicFilter))
	buf.WriteByte(pkt.QoSWanted)

	pkt.RemainingLength = uint32(buf.Len())
	if err := pkt.FixedHeader.Pack(w); err != nil {
		return err
	}
	_, err := buf.WriteTo(w)
	return err
}

func (pkt *SUBSCRIBE) Unpack(buf *bytes.Buffer) error {
	if buf.Len() < 2 {
		return ErrMalformedPacket
	}
	pkt.PacketID = binary.BigEndian.Uint16(buf.Next(2))

	if buf.Len() < 3 {
		return ErrMalformedPacket
	}
	pkt.TopicFilter = decodeUTF8[string](buf)
	if pkt.TopicFilter == "" {
		return ErrProtocolViolation
	}

	options := buf.Next(1)[0]
	// MQTT-3-8.3-4: bits 7-2 of the subscription options byte are reserved.
	if options&0xFC != 0 {
		return ErrMalformedFlags
	}
	pkt.QoSWanted = options & 0x03
	if pkt.QoSWanted > 2 {
		return ErrProtocolViolationQosOutOfRange
	}
	return nil
}
