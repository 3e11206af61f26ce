package mqttengine

import (
	"time"

	"github.com/mqttcore/engine/packet"
)

// resetKeepalive (re)starts the keep-alive timer when the broker accepts
// the connection, section 4.5.5; it is not restarted by other traffic, so a
// PINGREQ goes out every KeepAlive seconds. A KeepAlive of 0 disables the ping loop
// entirely, matching the protocol's "keep alive disabled" convention.
func (e *Engine) resetKeepalive() {
	e.stopKeepaliveLocked()
	if e.cfg.KeepAlive == 0 {
		return
	}
	e.keepaliveTimer = time.AfterFunc(time.Duration(e.cfg.KeepAlive)*time.Second, e.sendKeepalivePing)
}

func (e *Engine) stopKeepalive() {
	e.stopKeepaliveLocked()
}

func (e *Engine) stopKeepaliveLocked() {
	if e.keepaliveTimer != nil {
		e.keepaliveTimer.Stop()
		e.keepaliveTimer = nil
	}
}

// sendKeepalivePing fires on its own timer goroutine; it hops onto the
// executor via do before touching the transport or rescheduling itself.
func (e *Engine) sendKeepalivePing() {
	e.do(func() (any, error) {
		if e.State() != Connected {
			return nil, nil
		}
		ping := &packet.PINGREQ{FixedHeader: &packet.FixedHeader{Version: e.cfg.ProtocolVersion, Kind: packet.KindPingreq}}
		if err := e.writePacket(ping); err != nil {
			e.emitError(TransportUnavailable, err)
			return nil, err
		}
		e.keepaliveTimer = time.AfterFunc(time.Duration(e.cfg.KeepAlive)*time.Second, e.sendKeepalivePing)
		return nil, nil
	})
}
