package packet

import (
	"bytes"
	"encoding/binary"
	"io"
)

// PUBLISH carries an application message; section 3.3. QoS, DUP and RETAIN
// live in the fixed header flags rather than on this struct, since they are
// part of the first byte on the wire, not the variable header.
type PUBLISH struct {
	*FixedHeader

	TopicName string
	PacketID  uint16 // present only when QoS > 0, section 2.3.1
	Payload   []byte
}

func (pkt *PUBLISH) Kind() byte { return KindPublish }

func (pkt *PUBLISH) Pack(w io.Writer) error {
	if pkt.QoS > 0 && pkt.PacketID == 0 {
		// invariant I3: never write a nonzero-QoS PUBLISH with id 0.
		return ErrMalformedPacket
	}

	buf := GetBuffer()
	defer PutBuffer(buf)

	buf.Write(s2b(pkt.TopicName))
	if pkt.QoS > 0 {
		buf.Write(i2b(pkt.PacketID))
	}
	buf.Write(pkt.Payload)

	pkt.RemainingLength = uint32(buf.Len())
	if err := pkt.FixedHeader.Pack(w); err != nil {
		return err
	}
	_, err := buf.WriteTo(w)
	return err
}

func (pkt *PUBLISH) Unpack(buf *bytes.Buffer) error {
	if buf.Len() < 2 {
		return ErrMalformedPacket
	}
	pkt.TopicName = decodeUTF8[string](buf)

	if pkt.QoS > 0 {
		if buf.Len() < 2 {
			return ErrMalformedPacket
		}
		pkt.PacketID = binary.BigEndian.Uint16(buf.Next(2))
	}

	// whatever remains is the application payload; a zero-length payload
	// is valid, section 3.3.3.
	pkt.Payload = bytes.Clone(buf.Bytes())
	buf.Next(buf.Len())
	return nil
}
