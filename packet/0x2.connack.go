package packet

import (
	"bytes"
	"io"
)

// CONNACK acknowledges a CONNECT attempt; section 3.2.
type CONNACK struct {
	*FixedHeader

	SessionPresent bool
	ReturnCode     ReasonCode
}

func (pkt *CONNACK) Kind() byte { return KindConnack }

func (pkt *CONNACK) Pack(w io.Writer) error {
	buf := GetBuffer()
	defer PutBuffer(buf)

	ackFlags := byte(0)
	if pkt.SessionPresent {
		ackFlags = 0x01
	}
	buf.WriteByte(ackFlags)
	buf.WriteByte(pkt.ReturnCode.Code)

	pkt.RemainingLength = uint32(buf.Len())
	if err := pkt.FixedHeader.Pack(w); err != nil {
		return err
	}
	_, err := buf.WriteTo(w)
	return err
}

func (pkt *CONNACK) Unpack(buf *bytes.Buffer) error {
	if pkt.RemainingLength != 2 || buf.Len() < 2 {
		return ErrMalformedPacket
	}
	ackFlags := buf.Next(1)[0]
	// MQTT-3.2.2-1: bits 7-1 of the connect acknowledge flags are reserved
	// and must be set to 0.
	if ackFlags&0xFE != 0 {
		return ErrProtocolViolation
	}
	pkt.SessionPresent = ackFlags&0x01 == 0x01
	pkt.ReturnCode = ReasonCode{Code: buf.Next(1)[0]}
	return nil
}
