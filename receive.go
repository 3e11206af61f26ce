package mqttengine

import (
	"fmt"
	"io"

	"github.com/mqttcore/engine/packet"
)

// countingReader tallies bytes pulled off r, so the engine can maintain a
// bytes-received metric without packet.Unpack needing to know about it.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

func countingWrite(w io.Writer, pkt packet.Packet) (int64, error) {
	cw := &countingWriter{w: w}
	err := pkt.Pack(cw)
	return cw.n, err
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// readLoop runs on its own goroutine for the life of one connection: it
// blocks on packet.Unpack, which itself blocks until a complete control
// packet has arrived, then hands the decoded packet to the executor via
// e.inbound. It never mutates engine state directly.
func (e *Engine) readLoop() {
	cr := &countingReader{r: e.transport}
	for {
		pkt, err := packet.Unpack(e.cfg.ProtocolVersion, cr)
		if err != nil {
			select {
			case e.readErr <- err:
			case <-e.closed:
			}
			return
		}
		e.metrics.PacketsReceived.WithLabelValues(packet.Kind[pkt.Kind()]).Inc()
		e.metrics.BytesReceived.Add(float64(cr.n))
		cr.n = 0
		select {
		case e.inbound <- pkt:
		case <-e.closed:
			return
		}
	}
}

// dispatchLoop is the steady-state counterpart to awaitConnack: once the
// connection is established, every inbound packet is routed through here
// and finalized on the executor goroutine.
func (e *Engine) dispatchLoop() {
	for {
		select {
		case pkt := <-e.inbound:
			e.do(func() (any, error) {
				e.finalize(pkt)
				return nil, nil
			})
		case err := <-e.readErr:
			e.handleTransportClosed(err)
			return
		case <-e.closed:
			return
		}
		if e.State() != Connected {
			return
		}
	}
}

// finalize applies one inbound packet's effect on engine state, section
// 4.5.3. Must only run on the executor goroutine.
func (e *Engine) finalize(pkt packet.Packet) {
	e.cfg.Logger.Printf("mqttengine: received %s", packet.Kind[pkt.Kind()])
	switch p := pkt.(type) {
	case *packet.CONNACK:
		// A second CONNACK after the handshake has already completed is a
		// protocol violation; there is nothing meaningful to apply.
		e.emitError(ProtocolError, fmt.Errorf("unexpected CONNACK after handshake"))

	case *packet.PUBLISH:
		e.finalizePublish(p)

	case *packet.PUBACK:
		if _, ok := e.inflight.TakeOnPuback(p.PacketID); !ok {
			e.emitError(IdentifierUnknown, fmt.Errorf("PUBACK for unknown id %d", p.PacketID))
		}
		e.metrics.InflightDepth.Set(float64(e.inflight.Pending()))
		if e.onMessageSent != nil {
			e.onMessageSent(p.PacketID)
		}

	case *packet.PUBREC:
		if _, ok := e.inflight.PromoteOnPubrec(p.PacketID); !ok {
			e.emitError(IdentifierUnknown, fmt.Errorf("PUBREC for unknown id %d", p.PacketID))
			return
		}
		rel := &packet.PUBREL{FixedHeader: &packet.FixedHeader{Version: e.cfg.ProtocolVersion, Kind: packet.KindPubrel}, PacketID: p.PacketID}
		if err := e.writePacket(rel); err != nil {
			e.emitError(TransportUnavailable, err)
		}

	case *packet.PUBREL:
		// Method A: the application already saw this message when the
		// PUBLISH arrived, so PUBCOMP is unconditional, section 4.4.
		comp := &packet.PUBCOMP{FixedHeader: &packet.FixedHeader{Version: e.cfg.ProtocolVersion, Kind: packet.KindPubcomp}, PacketID: p.PacketID}
		if err := e.writePacket(comp); err != nil {
			e.emitError(TransportUnavailable, err)
		}

	case *packet.PUBCOMP:
		if ok := e.inflight.TakeOnPubcomp(p.PacketID); !ok {
			e.emitError(IdentifierUnknown, fmt.Errorf("PUBCOMP for unknown id %d", p.PacketID))
		}
		e.metrics.InflightDepth.Set(float64(e.inflight.Pending()))
		if e.onMessageSent != nil {
			e.onMessageSent(p.PacketID)
		}

	case *packet.SUBACK:
		// Any return code outside the granted-QoS range {0,1,2} (0x80's
		// documented failure value, or anything else a nonconforming
		// broker sends) marks this subscription Error without touching
		// the connection; only CONNACK's return code is connection-fatal.
		granted := p.ReturnCode
		failed := granted > 2
		if _, ok := e.subs.ResolveSuback(p.PacketID, granted, failed); !ok {
			e.emitError(IdentifierUnknown, fmt.Errorf("SUBACK for unknown id %d", p.PacketID))
		}

	case *packet.UNSUBACK:
		if _, ok := e.subs.ResolveUnsuback(p.PacketID); !ok {
			e.emitError(IdentifierUnknown, fmt.Errorf("UNSUBACK for unknown id %d", p.PacketID))
		}

	case *packet.PINGRESP:
		e.metrics.PingRoundTrips.Inc()
		if e.onPingResponse != nil {
			e.onPingResponse()
		}

	default:
		e.emitError(ProtocolError, fmt.Errorf("unexpected packet kind %T from broker", p))
	}
}

func (e *Engine) finalizePublish(p *packet.PUBLISH) {
	if e.onMessage != nil {
		e.onMessage(p.TopicName, p.Payload)
	}

	switch p.QoS {
	case 0:
		return
	case 1:
		ack := &packet.PUBACK{FixedHeader: &packet.FixedHeader{Version: e.cfg.ProtocolVersion, Kind: packet.KindPuback}, PacketID: p.PacketID}
		if err := e.writePacket(ack); err != nil {
			e.emitError(TransportUnavailable, err)
		}
	case 2:
		rec := &packet.PUBREC{FixedHeader: &packet.FixedHeader{Version: e.cfg.ProtocolVersion, Kind: packet.KindPubrec}, PacketID: p.PacketID}
		if err := e.writePacket(rec); err != nil {
			e.emitError(TransportUnavailable, err)
		}
	}
}
