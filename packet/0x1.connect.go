package packet

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// protocolName returns the wire protocol name for a CONNECT packet: "MQIsdp"
// for v3.1, "MQTT" for v3.1.1. Section 3.1.2.1.
func protocolName(version byte) (string, error) {
	switch version {
	case VERSION310:
		return "MQIsdp", nil
	case VERSION311:
		return "MQTT", nil
	default:
		return "", fmt.Errorf("mqtt: unsupported protocol version %d", version)
	}
}

// maxClientIDBytes is the wire truncation limit for the client identifier,
// section 3.1.3.1: "between 1 and 23 UTF-8 encoded bytes in length" for
// broad v3.1/v3.1.1 broker compatibility.
const maxClientIDBytes = 23

// ConnectFlags is the single connect-flags byte, section 3.1.2.2.
type ConnectFlags uint8

func (f ConnectFlags) Reserved() uint8    { return uint8(f) & 0x01 }
func (f ConnectFlags) CleanSession() bool { return uint8(f)&0x02 == 0x02 }
func (f ConnectFlags) WillFlag() bool     { return uint8(f)&0x04 == 0x04 }
func (f ConnectFlags) WillQoS() uint8     { return uint8(f) & 0x18 >> 3 }
func (f ConnectFlags) WillRetain() bool   { return uint8(f)&0x20 == 0x20 }
func (f ConnectFlags) PasswordFlag() bool { return uint8(f)&0x40 == 0x40 }
func (f ConnectFlags) UsernameFlag() bool { return uint8(f)&0x80 == 0x80 }

// Will is the optional last-will-and-testament message, section 3.1.2.5-7.
type Will struct {
	Topic   string
	Payload []byte
	QoS     uint8
	Retain  bool
}

// CONNECT is the first packet a client sends on a fresh connection; section
// 3.1.
type CONNECT struct {
	*FixedHeader

	ClientID     string
	CleanSession bool
	KeepAlive    uint16
	Will         *Will
	Username     string
	Password     string
}

func (pkt *CONNECT) Kind() byte { return KindConnect }

func (pkt *CONNECT) Pack(w io.Writer) error {
	name, err := protocolName(pkt.Version)
	if err != nil {
		return err
	}

	clientID := pkt.ClientID
	if len(clientID) > maxClientIDBytes {
		clientID = clientID[:maxClientIDBytes]
	}

	var flags ConnectFlags
	if pkt.CleanSession {
		flags |= 0x02
	}
	if pkt.Will != nil {
		if pkt.Will.QoS > 2 {
			return fmt.Errorf("mqtt: invalid will qos %d", pkt.Will.QoS)
		}
		flags |= 0x04
		flags |= ConnectFlags(pkt.Will.QoS) << 3
		if pkt.Will.Retain {
			flags |= 0x20
		}
	}
	if pkt.Password != "" {
		flags |= 0x40
	}
	if pkt.Username != "" {
		flags |= 0x80
	}

	buf := GetBuffer()
	defer PutBuffer(buf)

	buf.Write(s2b(name))
	buf.WriteByte(pkt.Version)
	buf.WriteByte(byte(flags))
	buf.Write(i2b(pkt.KeepAlive))

	buf.Write(s2b(clientID))
	if pkt.Will != nil {
		buf.Write(s2b(pkt.Will.Topic))
		buf.Write(s2b(pkt.Will.Payload))
	}
	if pkt.Username != "" {
		buf.Write(s2b(pkt.Username))
	}
	if pkt.Password != "" {
		buf.Write(s2b(pkt.Password))
	}

	pkt.RemainingLength = uint32(buf.Len())
	if err := pkt.FixedHeader.Pack(w); err != nil {
		return err
	}
	_, err = buf.WriteTo(w)
	return err
}

func (pkt *CONNECT) Unpack(buf *bytes.Buffer) error {
	name := decodeUTF8[string](buf)
	wantName, err := protocolName(pkt.Version)
	if err != nil {
		return err
	}
	if name != wantName {
		return ErrMalformedProtocolName
	}

	if buf.Len() < 2 {
		return ErrMalformedPacket
	}
	buf.Next(1) // protocol level byte, written by Pack right after the name
	flags := ConnectFlags(buf.Next(1)[0])
	if flags.Reserved() != 0 {
		return ErrProtocolViolation
	}
	if flags.WillQoS() > 2 {
		return ErrProtocolViolationQosOutOfRange
	}
	if !flags.WillFlag() && (flags.WillRetain() || flags.WillQoS() != 0) {
		return ErrProtocolViolation
	}
	if flags.PasswordFlag() && !flags.UsernameFlag() {
		return ErrProtocolViolation
	}

	if buf.Len() < 2 {
		return ErrMalformedPacket
	}
	pkt.KeepAlive = binary.BigEndian.Uint16(buf.Next(2))

	pkt.CleanSession = flags.CleanSession()
	pkt.ClientID = decodeUTF8[string](buf)

	if flags.WillFlag() {
		pkt.Will = &Will{
			QoS:    flags.WillQoS(),
			Retain: flags.WillRetain(),
		}
		pkt.Will.Topic = decodeUTF8[string](buf)
		pkt.Will.Payload = decodeUTF8[[]byte](buf)
	}
	if flags.UsernameFlag() {
		pkt.Username = decodeUTF8[string](buf)
	}
	if flags.PasswordFlag() {
		pkt.Password = decodeUTF8[string](buf)
	}
	return nil
}
