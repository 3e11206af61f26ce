// Package inflight tracks the client's outstanding QoS 1 and QoS 2
// publish exchanges and allocates packet identifiers for them.
package inflight

import (
	"sync"

	"github.com/mqttcore/engine/packet"
)

// Tracker holds the two inflight tables a client-side engine needs: one for
// outbound QoS 1/2 PUBLISH packets awaiting their first acknowledgement,
// and one for QoS 2 exchanges that have moved past PUBREC and are awaiting
// PUBCOMP after a PUBREL. Method A (section 4.4 of this engine's delivery
// model) means an inbound QoS 2 PUBLISH is delivered to the application as
// soon as it arrives, not when the exchange finally completes; these tables
// only concern the outbound direction.
type Tracker struct {
	mu sync.Mutex

	awaitAck  map[uint16]*packet.PUBLISH // QoS 1: awaiting PUBACK. QoS 2: awaiting PUBREC.
	awaitComp map[uint16]struct{}        // QoS 2: PUBREL sent, awaiting PUBCOMP.
}

// New returns an empty Tracker.
func New() *Tracker {
	return &Tracker{
		awaitAck:  make(map[uint16]*packet.PUBLISH),
		awaitComp: make(map[uint16]struct{}),
	}
}

// RegisterPublish records pub as awaiting acknowledgement, keyed by its
// packet identifier. Call this before writing the PUBLISH to the wire so a
// same-goroutine-ordered ack can never race ahead of the registration.
func (t *Tracker) RegisterPublish(pub *packet.PUBLISH) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.awaitAck[pub.PacketID] = pub
}

// TakeOnPuback removes and returns the PUBLISH a PUBACK resolves, for QoS 1.
func (t *Tracker) TakeOnPuback(id uint16) (*packet.PUBLISH, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	pub, ok := t.awaitAck[id]
	if ok {
		delete(t.awaitAck, id)
	}
	return pub, ok
}

// PromoteOnPubrec moves a QoS 2 publish from the ack table to the
// completion table when its PUBREC arrives, returning the original
// PUBLISH so the caller can detect an unexpected/duplicate PUBREC.
func (t *Tracker) PromoteOnPubrec(id uint16) (*packet.PUBLISH, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	pub, ok := t.awaitAck[id]
	if !ok {
		return nil, false
	}
	delete(t.awaitAck, id)
	t.awaitComp[id] = struct{}{}
	return pub, true
}

// TakeOnPubcomp clears a QoS 2 exchange when its PUBCOMP arrives.
func (t *Tracker) TakeOnPubcomp(id uint16) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.awaitComp[id]
	if ok {
		delete(t.awaitComp, id)
	}
	return ok
}

// Pending reports the number of publishes awaiting any acknowledgement,
// across both tables, for diagnostics and graceful-shutdown draining.
func (t *Tracker) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.awaitAck) + len(t.awaitComp)
}
