package mqttengine

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"net"
	"testing"
	"time"
)

// fakeBroker reads and replies over the server half of a net.Pipe,
// standing in for a real MQTT broker in byte-exact round-trip tests.
type fakeBroker struct {
	conn net.Conn
	t    *testing.T
}

func newFakeBroker(t *testing.T) (*Engine, *fakeBroker) {
	client, server := net.Pipe()
	e := New(WithClientID("abc"), WithKeepAlive(60))
	e.SetTransport(client, RawDevice)
	return e, &fakeBroker{conn: server, t: t}
}

func (b *fakeBroker) expect(wantHex string) {
	b.t.Helper()
	want, err := hex.DecodeString(wantHex)
	if err != nil {
		b.t.Fatalf("bad hex fixture %q: %v", wantHex, err)
	}
	got := make([]byte, len(want))
	if _, err := io.ReadFull(b.conn, got); err != nil {
		b.t.Fatalf("read from client: %v", err)
	}
	if hex.EncodeToString(got) != hex.EncodeToString(want) {
		b.t.Fatalf("client wrote %x, want %x", got, want)
	}
}

// readRaw reads one fixed-header + body off the wire without assuming a
// remaining length beyond 127 bytes, which holds for every fixture here.
func (b *fakeBroker) readRaw() (kindAndFlags byte, body []byte) {
	b.t.Helper()
	header := make([]byte, 2)
	if _, err := io.ReadFull(b.conn, header); err != nil {
		b.t.Fatalf("read header: %v", err)
	}
	body = make([]byte, header[1])
	if _, err := io.ReadFull(b.conn, body); err != nil {
		b.t.Fatalf("read body: %v", err)
	}
	return header[0], body
}

func (b *fakeBroker) send(sendHex string) {
	b.t.Helper()
	raw, err := hex.DecodeString(sendHex)
	if err != nil {
		b.t.Fatalf("bad hex fixture %q: %v", sendHex, err)
	}
	if _, err := b.conn.Write(raw); err != nil {
		b.t.Fatalf("write to client: %v", err)
	}
}

// connectFixture is the wire encoding of a CONNECT from client id "abc",
// keep-alive 60, clean session, v3.1.1, no credentials: scenario S1. The
// remaining-length byte in the source specification's fixture is 0x10,
// but its own variable header and payload are 15 bytes; this engine
// encodes the standards-correct 0x0F, per the decision recorded in
// DESIGN.md rather than reproduce the apparent off-by-one.
const connectFixture = "100f00044d5154540402003c0003616263"

// TestConnectAccepted drives scenario S1: CONNECT goes out byte-exact,
// CONNACK with return code 0 brings the engine to Connected and fires
// the connected event exactly once.
func TestConnectAccepted(t *testing.T) {
	e, broker := newFakeBroker(t)
	defer e.Close()

	var connectedCount int
	connectedFired := make(chan struct{}, 4)
	e.OnConnected(func() { connectedCount++; connectedFired <- struct{}{} })

	errCh := make(chan error, 1)
	go func() { errCh <- e.Connect(context.Background()) }()

	broker.expect(connectFixture)
	broker.send("20020000") // CONNACK, session-present=0, return code accepted

	if err := <-errCh; err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if e.State() != Connected {
		t.Fatalf("state = %s, want Connected", e.State())
	}
	select {
	case <-connectedFired:
	case <-time.After(time.Second):
		t.Fatal("onConnected never fired")
	}
	if connectedCount != 1 {
		t.Fatalf("onConnected fired %d times, want exactly 1", connectedCount)
	}
}

// TestConnectRejected drives scenario S2: a nonzero CONNACK return code
// closes the transport, leaves the engine Disconnected, and fires
// error(ConnectionRefused).
func TestConnectRejected(t *testing.T) {
	e, broker := newFakeBroker(t)
	defer e.Close()

	errFired := make(chan *Error, 1)
	e.OnError(func(err *Error) { errFired <- err })

	errCh := make(chan error, 1)
	go func() { errCh <- e.Connect(context.Background()) }()

	broker.expect(connectFixture)
	broker.send("20020005") // CONNACK, return code 0x05 not authorized

	if err := <-errCh; err == nil {
		t.Fatal("Connect: expected error on rejected CONNACK")
	}
	if e.State() != Disconnected {
		t.Fatalf("state = %s, want Disconnected", e.State())
	}
	select {
	case err := <-errFired:
		if err.Kind != ConnectionRefused {
			t.Fatalf("error kind = %s, want ConnectionRefused", err.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("onError never fired")
	}
}

func mustConnect(t *testing.T) (*Engine, *fakeBroker) {
	t.Helper()
	e, broker := newFakeBroker(t)
	errCh := make(chan error, 1)
	go func() { errCh <- e.Connect(context.Background()) }()
	broker.expect(connectFixture)
	broker.send("20020000")
	if err := <-errCh; err != nil {
		t.Fatalf("Connect: %v", err)
	}
	return e, broker
}

// TestPublishQoS1RoundTrip drives scenario S3. The packet identifier is
// randomized at engine construction (design note: per-engine, not
// process-wide), so the fixture is built around whatever id the engine
// actually allocates rather than a hardcoded 1.
func TestPublishQoS1RoundTrip(t *testing.T) {
	e, broker := mustConnect(t)
	defer e.Close()

	sentFired := make(chan uint16, 1)
	e.OnMessageSent(func(id uint16) { sentFired <- id })

	pubErr := make(chan error, 1)
	idCh := make(chan uint16, 1)
	go func() {
		id, err := e.Publish("t", []byte("m"), 1, false)
		idCh <- id
		pubErr <- err
	}()

	// Publish() cannot return until the broker reads the packet it just
	// wrote (net.Pipe is a synchronous rendezvous), so the id must be
	// pulled off the wire before waiting on the result channels below.
	kindAndFlags, body := broker.readRaw()
	if kindAndFlags != 0x32 {
		t.Fatalf("fixed header byte = %#x, want 0x32", kindAndFlags)
	}
	if len(body) != 6 || hex.EncodeToString(body[:3]) != "000174" || body[5] != 0x6d {
		t.Fatalf("publish body = %x, want topic \"t\" and payload \"m\"", body)
	}
	id := uint16(body[3])<<8 | uint16(body[4])

	if err := <-pubErr; err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if got := <-idCh; got != id {
		t.Fatalf("Publish returned id %d, wire carried %d", got, id)
	}

	broker.send(fmt.Sprintf("4002%04x", id))

	select {
	case got := <-sentFired:
		if got != id {
			t.Fatalf("message_sent id = %d, want %d", got, id)
		}
	case <-time.After(time.Second):
		t.Fatal("message_sent never fired")
	}
}

// TestPublishQoS2RoundTrip drives scenario S4: message_sent must fire
// exactly once, only after PUBCOMP, never after PUBREC (property P3).
func TestPublishQoS2RoundTrip(t *testing.T) {
	e, broker := mustConnect(t)
	defer e.Close()

	sentFired := make(chan uint16, 4)
	e.OnMessageSent(func(id uint16) { sentFired <- id })

	pubErr := make(chan error, 1)
	idCh := make(chan uint16, 1)
	go func() {
		id, err := e.Publish("t", []byte("m"), 2, false)
		idCh <- id
		pubErr <- err
	}()

	kindAndFlags, body := broker.readRaw()
	if kindAndFlags != 0x34 {
		t.Fatalf("fixed header byte = %#x, want 0x34", kindAndFlags)
	}
	if len(body) != 6 || hex.EncodeToString(body[:3]) != "000174" || body[5] != 0x6d {
		t.Fatalf("publish body = %x, want topic \"t\" and payload \"m\"", body)
	}
	id := uint16(body[3])<<8 | uint16(body[4])

	if err := <-pubErr; err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if got := <-idCh; got != id {
		t.Fatalf("Publish returned id %d, wire carried %d", got, id)
	}

	broker.send(fmt.Sprintf("5002%04x", id))   // PUBREC
	broker.expect(fmt.Sprintf("6202%04x", id)) // engine replies PUBREL

	select {
	case <-sentFired:
		t.Fatal("message_sent fired before PUBCOMP")
	case <-time.After(100 * time.Millisecond):
	}

	broker.send(fmt.Sprintf("7002%04x", id)) // PUBCOMP

	var sentCount int
	select {
	case got := <-sentFired:
		if got != id {
			t.Fatalf("message_sent id = %d, want %d", got, id)
		}
		sentCount++
	case <-time.After(time.Second):
		t.Fatal("message_sent never fired after PUBCOMP")
	}
	select {
	case <-sentFired:
		sentCount++
	case <-time.After(50 * time.Millisecond):
	}
	if sentCount != 1 {
		t.Fatalf("message_sent fired %d times, want exactly 1", sentCount)
	}
}

// TestSubscribeReceiveUnsubscribe drives scenario S5.
func TestSubscribeReceiveUnsubscribe(t *testing.T) {
	e, broker := mustConnect(t)
	defer e.Close()

	received := make(chan string, 1)
	e.OnMessage(func(topicName string, payload []byte) {
		received <- fmt.Sprintf("%s:%s", topicName, payload)
	})

	subResult := make(chan error, 1)
	subIDCh := make(chan uint16, 1)
	go func() {
		sub, err := e.Subscribe("a/+/c", 1)
		if sub != nil {
			subIDCh <- sub.PacketID
		} else {
			subIDCh <- 0
		}
		subResult <- err
	}()

	kindAndFlags, body := broker.readRaw()
	if kindAndFlags != 0x82 {
		t.Fatalf("fixed header byte = %#x, want 0x82", kindAndFlags)
	}
	if len(body) != 10 || hex.EncodeToString(body[2:]) != "0005612f2b2f6301" {
		t.Fatalf("subscribe body = %x, want filter \"a/+/c\" qos 1", body)
	}
	subID := uint16(body[0])<<8 | uint16(body[1])

	if err := <-subResult; err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if got := <-subIDCh; got != subID {
		t.Fatalf("Subscribe returned id %d, wire carried %d", got, subID)
	}
	broker.send(fmt.Sprintf("9003%04x01", subID)) // SUBACK, granted QoS 1

	// Give the SUBACK a moment to land before the broker "publishes".
	time.Sleep(20 * time.Millisecond)

	broker.send("320a0005612f622f63000958") // PUBLISH a/b/c id=9 payload "X", QoS1
	broker.expect("40020009")                // engine's PUBACK for id 9

	select {
	case got := <-received:
		if got != "a/b/c:X" {
			t.Fatalf("received %q, want \"a/b/c:X\"", got)
		}
	case <-time.After(time.Second):
		t.Fatal("onMessage never fired")
	}

	unsubResult := make(chan error, 1)
	go func() { unsubResult <- e.Unsubscribe("a/+/c") }()

	// The UNSUBSCRIBE packet id is whatever the allocator hands out next;
	// read the bytes directly rather than precompute it.
	kindAndFlags, unsubBody := broker.readRaw()
	if kindAndFlags != 0xA2 {
		t.Fatalf("unsubscribe header byte = %#x, want 0xa2", kindAndFlags)
	}
	if len(unsubBody) != 9 || hex.EncodeToString(unsubBody[2:]) != "0005612f2b2f63" {
		t.Fatalf("unsubscribe body = %x, want filter \"a/+/c\"", unsubBody)
	}
	unsubID := uint16(unsubBody[0])<<8 | uint16(unsubBody[1])

	broker.send(fmt.Sprintf("b002%04x", unsubID)) // UNSUBACK
	if err := <-unsubResult; err != nil {
		t.Fatalf("Unsubscribe: %v", err)
	}
}

// TestKeepAlive drives scenario S6: after the configured interval the
// engine sends PINGREQ, and the reply fires ping_response_received.
func TestKeepAlive(t *testing.T) {
	client, server := net.Pipe()
	e := New(WithClientID("abc"), WithKeepAlive(1))
	e.SetTransport(client, RawDevice)
	defer e.Close()
	broker := &fakeBroker{conn: server, t: t}

	errCh := make(chan error, 1)
	go func() { errCh <- e.Connect(context.Background()) }()
	broker.expect("100f00044d515454040200010003616263") // connectFixture with keep-alive 1
	broker.send("20020000")
	if err := <-errCh; err != nil {
		t.Fatalf("Connect: %v", err)
	}

	pingFired := make(chan struct{}, 1)
	e.OnPingResponse(func() { pingFired <- struct{}{} })

	broker.expect("c000") // PINGREQ after ~1s idle
	broker.send("d000")   // PINGRESP

	select {
	case <-pingFired:
	case <-time.After(2 * time.Second):
		t.Fatal("ping_response_received never fired")
	}
}
