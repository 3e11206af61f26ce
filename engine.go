// Package mqttengine implements the client side of an MQTT 3.1/3.1.1
// connection: the handshake and keep-alive state machine, the
// subscription registry, and the QoS 1/2 inflight tracker, running over
// any byte-stream transport.
package mqttengine

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/mqttcore/engine/inflight"
	"github.com/mqttcore/engine/packet"
	"github.com/mqttcore/engine/subscription"
	"github.com/mqttcore/engine/topic"
)

// State is the engine's connection state, section 3/4.5.2 of the spec.
type State int

const (
	Disconnected State = iota
	Connecting
	WaitingForConnectAck
	Connected
	Disconnecting
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "Disconnected"
	case Connecting:
		return "Connecting"
	case WaitingForConnectAck:
		return "WaitingForConnectAck"
	case Connected:
		return "Connected"
	case Disconnecting:
		return "Disconnecting"
	default:
		return "Unknown"
	}
}

// job is a unit of work posted to the engine's single logical executor;
// section 5's "single-threaded cooperative" model, realized as a
// channel-funneled command queue rather than a lock around shared state.
type job struct {
	run  func() (any, error)
	resp chan result
}

type result struct {
	value any
	err   error
}

// Engine is a client-side MQTT connection. Connect, Disconnect, Publish,
// Subscribe and Unsubscribe post a job onto the engine's command queue, and
// the one executor goroutine (run) is the only goroutine that mutates
// state, subs or inflight; readLoop reads from the transport on its own
// goroutine. SetTransport, Transport and the On* setters access their
// fields directly without going through the queue.
type Engine struct {
	cfg Config

	transport     io.ReadWriteCloser
	transportKind TransportKind

	stateMu sync.RWMutex
	state   State

	subs     *subscription.Registry
	inflight *inflight.Tracker
	ids      *inflight.IDAllocator
	metrics  *Metrics

	jobs    chan job
	inbound chan packet.Packet
	readErr chan error
	closed  chan struct{}

	keepaliveTimer *time.Timer

	onConnected       func()
	onDisconnected    func()
	onError           func(*Error)
	onStateChanged    func(State)
	onSessionRestored func()
	onPingResponse    func()
	onMessage         func(topicName string, payload []byte)
	onMessageSent     func(id uint16)
}

// New constructs an Engine with no transport attached; call SetTransport
// or use Dial/DialTLS before Connect.
func New(opts ...Option) *Engine {
	cfg := newConfig(opts...)
	metrics := noopMetrics()
	metrics.register(cfg.registry)

	e := &Engine{
		cfg:      cfg,
		state:    Disconnected,
		subs:     subscription.NewRegistry(),
		inflight: inflight.New(),
		ids:      inflight.NewIDAllocator(),
		metrics:  metrics,
		jobs:     make(chan job),
		inbound:  make(chan packet.Packet, 16),
		readErr:  make(chan error, 1),
		closed:   make(chan struct{}),
	}
	go e.run()
	return e
}

func (e *Engine) State() State {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()
	return e.state
}

func (e *Engine) setState(s State) {
	e.stateMu.Lock()
	e.state = s
	e.stateMu.Unlock()
	e.metrics.ActiveConnections.Set(boolToFloat(s == Connected))
	if e.onStateChanged != nil {
		e.onStateChanged(s)
	}
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// do posts run onto the executor and blocks for its result. It is the
// only way any exported method touches engine-owned state.
func (e *Engine) do(run func() (any, error)) (any, error) {
	resp := make(chan result, 1)
	select {
	case e.jobs <- job{run: run, resp: resp}:
	case <-e.closed:
		return nil, newError(TransportUnavailable, fmt.Errorf("engine is shut down"))
	}
	select {
	case r := <-resp:
		return r.value, r.err
	case <-e.closed:
		return nil, newError(TransportUnavailable, fmt.Errorf("engine is shut down"))
	}
}

func (e *Engine) emitError(kind Kind, cause error) *Error {
	err := newError(kind, cause)
	e.cfg.Logger.Printf("%v", err)
	if e.onError != nil {
		e.onError(err)
	}
	return err
}

// OnConnected registers a callback fired once the broker accepts the
// connection.
func (e *Engine) OnConnected(fn func())                               { e.onConnected = fn }
func (e *Engine) OnDisconnected(fn func())                            { e.onDisconnected = fn }
func (e *Engine) OnError(fn func(*Error))                             { e.onError = fn }
func (e *Engine) OnStateChanged(fn func(State))                       { e.onStateChanged = fn }
func (e *Engine) OnSessionRestored(fn func())                         { e.onSessionRestored = fn }
func (e *Engine) OnPingResponse(fn func())                            { e.onPingResponse = fn }
func (e *Engine) OnMessage(fn func(topicName string, payload []byte)) { e.onMessage = fn }
func (e *Engine) OnMessageSent(fn func(id uint16))                    { e.onMessageSent = fn }

// Connect performs connect_to_host(): ensures a transport is open, sends
// CONNECT, and blocks until CONNACK (or ctx expires). Section 4.5.2.
func (e *Engine) Connect(ctx context.Context) error {
	_, err := e.do(func() (any, error) {
		if e.State() != Disconnected {
			return nil, fmt.Errorf("mqttengine: connect called in state %s", e.State())
		}
		if e.cfg.ProtocolVersion != packet.VERSION310 && e.cfg.ProtocolVersion != packet.VERSION311 {
			return nil, e.emitError(InvalidConfiguration, fmt.Errorf("unsupported protocol version %d", e.cfg.ProtocolVersion))
		}
		if e.cfg.Will != nil && e.cfg.Will.QoS > 2 {
			return nil, e.emitError(InvalidConfiguration, fmt.Errorf("invalid will qos %d", e.cfg.Will.QoS))
		}

		e.setState(Connecting)
		if ok, err := e.ensureTransportOpen(ctx); !ok {
			e.setState(Disconnected)
			return nil, e.emitError(TransportUnavailable, err)
		}

		go e.readLoop()

		connect := e.buildConnect()
		if err := e.writePacket(connect); err != nil {
			e.setState(Disconnected)
			return nil, e.emitError(TransportUnavailable, err)
		}
		e.setState(WaitingForConnectAck)
		return nil, nil
	})
	if err != nil {
		return err
	}

	return e.awaitConnack(ctx)
}

func (e *Engine) buildConnect() *packet.CONNECT {
	connect := &packet.CONNECT{
		FixedHeader:  &packet.FixedHeader{Version: e.cfg.ProtocolVersion, Kind: packet.KindConnect},
		ClientID:     e.cfg.ClientID,
		CleanSession: e.cfg.CleanSession,
		KeepAlive:    e.cfg.KeepAlive,
		Username:     e.cfg.Username,
		Password:     e.cfg.Password,
	}
	if e.cfg.Will != nil {
		connect.Will = &packet.Will{
			Topic:   e.cfg.Will.Topic,
			Payload: e.cfg.Will.Payload,
			QoS:     e.cfg.Will.QoS,
			Retain:  e.cfg.Will.Retain,
		}
	}
	return connect
}

// awaitConnack blocks outside the executor (so the executor stays free to
// process the inbound CONNACK) until the handshake resolves.
func (e *Engine) awaitConnack(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-e.readErr:
			e.handleTransportClosed(err)
			return e.emitError(TransportUnavailable, err)
		case pkt := <-e.inbound:
			connack, ok := pkt.(*packet.CONNACK)
			if !ok {
				continue // any other packet before CONNACK is discarded; no error is raised
			}
			_, err := e.do(func() (any, error) {
				return nil, e.finalizeConnack(connack)
			})
			if err != nil {
				return err
			}
			if e.State() == Connected {
				go e.dispatchLoop()
				return nil
			}
			return e.emitError(ConnectionRefused, fmt.Errorf("connack return code %d", connack.ReturnCode.Code))
		}
	}
}

func (e *Engine) finalizeConnack(connack *packet.CONNACK) error {
	if connack.ReturnCode.Code != 0 {
		e.setState(Disconnected)
		e.closeTransport()
		return nil
	}
	e.setState(Connected)
	if connack.SessionPresent && e.onSessionRestored != nil {
		e.onSessionRestored()
	}
	e.resetKeepalive()
	if e.onConnected != nil {
		e.onConnected()
	}
	return nil
}

// Disconnect performs disconnect_from_host(): stops the keep-alive timer,
// sends an UNSUBSCRIBE for every active subscription while nominally still
// connected, sends DISCONNECT, and closes an engine-owned transport.
func (e *Engine) Disconnect() error {
	_, err := e.do(func() (any, error) {
		if e.State() != Connected {
			return nil, nil
		}
		e.setState(Disconnecting)
		e.stopKeepalive()
		for _, sub := range e.subs.All() {
			// Built and written inline rather than through Unsubscribe,
			// which would re-enter do() from inside this already-running
			// job and deadlock against the executor.
			unsub := &packet.UNSUBSCRIBE{
				FixedHeader: &packet.FixedHeader{Version: e.cfg.ProtocolVersion, Kind: packet.KindUnsubscribe},
				PacketID:    e.ids.Next(),
				TopicFilter: sub.Filter,
			}
			_ = e.writePacket(unsub) // best-effort; teardown proceeds regardless
			e.subs.Drop(sub.Filter)
		}
		disconnect := &packet.DISCONNECT{FixedHeader: &packet.FixedHeader{Version: e.cfg.ProtocolVersion, Kind: packet.KindDisconnect}}
		_ = e.writePacket(disconnect) // best-effort; teardown proceeds regardless
		e.closeTransport()
		e.setState(Disconnected)
		if e.onDisconnected != nil {
			e.onDisconnected()
		}
		return nil, nil
	})
	return err
}

// Close tears down the connection if one is open and stops the engine's
// executor goroutine for good; an Engine is not usable after Close.
func (e *Engine) Close() error {
	err := e.Disconnect()
	select {
	case <-e.closed:
	default:
		close(e.closed)
	}
	return err
}

func (e *Engine) closeTransport() {
	if e.transport != nil && e.transportKind != RawDevice {
		e.transport.Close()
	}
	e.transport = nil
}

func (e *Engine) handleTransportClosed(cause error) {
	e.do(func() (any, error) {
		if e.State() == Disconnected {
			return nil, nil
		}
		e.stopKeepalive()
		e.closeTransport()
		e.setState(Disconnected)
		if e.onDisconnected != nil {
			e.onDisconnected()
		}
		return nil, nil
	})
}

// Publish implements publish(topic, payload, qos, retain) -> id | error.
func (e *Engine) Publish(topicName string, payload []byte, qos uint8, retain bool) (uint16, error) {
	v, err := e.do(func() (any, error) {
		if len(topicName) > 0xFFFF {
			// A topic longer than its 2-byte length prefix can carry is truncated.
			topicName = topicName[:0xFFFF]
		}
		if err := topic.ValidateTopicName(topicName); err != nil {
			return uint16(0), e.emitError(InvalidTopic, err)
		}
		if e.State() != Connected {
			return uint16(0), fmt.Errorf("mqttengine: publish called in state %s", e.State())
		}

		pub := &packet.PUBLISH{
			FixedHeader: &packet.FixedHeader{Version: e.cfg.ProtocolVersion, Kind: packet.KindPublish, QoS: qos, Retain: b2u8(retain)},
			TopicName:   topicName,
			Payload:     payload,
		}
		if qos > 0 {
			pub.PacketID = e.ids.Next()
			e.inflight.RegisterPublish(pub)
			e.metrics.InflightDepth.Set(float64(e.inflight.Pending()))
		}
		if err := e.writePacket(pub); err != nil {
			return uint16(0), err
		}
		return pub.PacketID, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(uint16), nil
}

func b2u8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

// Subscribe implements subscribe(filter, qos) -> subscription handle.
func (e *Engine) Subscribe(filter string, qos uint8) (*subscription.Subscription, error) {
	v, err := e.do(func() (any, error) {
		if err := topic.ValidateTopicFilter(filter); err != nil {
			return nil, e.emitError(InvalidTopic, err)
		}
		if sub, ok := e.subs.Lookup(filter); ok {
			return sub, nil
		}
		if e.State() != Connected {
			return nil, fmt.Errorf("mqttengine: subscribe called in state %s", e.State())
		}
		id := e.ids.Next()
		sub := e.subs.Begin(filter, qos, id, e.Unsubscribe)
		req := &packet.SUBSCRIBE{
			FixedHeader: &packet.FixedHeader{Version: e.cfg.ProtocolVersion, Kind: packet.KindSubscribe},
			PacketID:    id,
			TopicFilter: filter,
			QoSWanted:   qos,
		}
		if err := e.writePacket(req); err != nil {
			return nil, err
		}
		return sub, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*subscription.Subscription), nil
}

// Unsubscribe implements unsubscribe(filter) -> ok | UnknownSubscription.
func (e *Engine) Unsubscribe(filter string) error {
	_, err := e.do(func() (any, error) {
		if _, ok := e.subs.Lookup(filter); !ok {
			return nil, fmt.Errorf("mqttengine: unknown subscription %q", filter)
		}
		if e.State() != Connected {
			e.subs.Drop(filter)
			return nil, nil
		}
		id := e.ids.Next()
		if _, ok := e.subs.BeginUnsubscribe(filter, id); !ok {
			return nil, fmt.Errorf("mqttengine: unknown subscription %q", filter)
		}
		req := &packet.UNSUBSCRIBE{
			FixedHeader: &packet.FixedHeader{Version: e.cfg.ProtocolVersion, Kind: packet.KindUnsubscribe},
			PacketID:    id,
			TopicFilter: filter,
		}
		return nil, e.writePacket(req)
	})
	return err
}

// writePacket serializes and writes pkt, updating send-side metrics. Must
// only be called from the executor goroutine (run, or a job run via do).
func (e *Engine) writePacket(pkt packet.Packet) error {
	if e.transport == nil {
		return fmt.Errorf("mqttengine: no transport")
	}
	counter, err := countingWrite(e.transport, pkt)
	if err != nil {
		return err
	}
	e.metrics.PacketsSent.WithLabelValues(packet.Kind[pkt.Kind()]).Inc()
	e.metrics.BytesSent.Add(float64(counter))
	e.cfg.Logger.Printf("mqttengine: sent %s", packet.Kind[pkt.Kind()])
	return nil
}

// run is the engine's logical executor: the single goroutine that ever
// mutates state, subs, inflight, or the transport.
func (e *Engine) run() {
	for {
		select {
		case j := <-e.jobs:
			v, err := j.run()
			j.resp <- result{value: v, err: err}
		case <-e.closed:
			return
		}
	}
}
