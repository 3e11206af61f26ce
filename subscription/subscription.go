// Package subscription tracks subscription handles and their lifecycle
// across SUBSCRIBE/UNSUBSCRIBE round trips.
package subscription

import "sync"

// State is a subscription's lifecycle state, section 3 of the engine spec.
type State int

const (
	Pending State = iota
	Subscribed
	UnsubscriptionPending
	Unsubscribed
	Error
)

func (s State) String() string {
	switch s {
	case Pending:
		return "SubscriptionPending"
	case Subscribed:
		return "Subscribed"
	case UnsubscriptionPending:
		return "UnsubscriptionPending"
	case Unsubscribed:
		return "Unsubscribed"
	case Error:
		return "Error"
	default:
		return "Unknown"
	}
}

// Subscription is a handle to one topic filter's subscription lifecycle.
// A Subscription never holds a strong reference back to the engine that
// created it — only the unsubscribe callback below — so dropping every
// handle a caller holds lets the engine's own registry be the sole owner.
type Subscription struct {
	mu sync.Mutex

	Filter       string
	RequestedQoS uint8
	GrantedQoS   uint8
	PacketID     uint16
	state        State

	unsubscribeFn func(filter string) error
}

func (s *Subscription) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Subscription) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// Unsubscribe releases this handle. If the subscription is still live, it
// asks the owning engine to send an UNSUBSCRIBE; per spec design note 9, a
// Subscribed handle that is simply garbage-collected without an explicit
// Unsubscribe call leaks no wire traffic — only an explicit call or the
// registry's own teardown triggers one.
func (s *Subscription) Unsubscribe() error {
	if s.State() != Subscribed {
		return nil
	}
	if s.unsubscribeFn == nil {
		return nil
	}
	return s.unsubscribeFn(s.Filter)
}

// Registry indexes live Subscriptions by filter (for idempotent Subscribe
// and Unsubscribe lookups) and by the packet identifier of their
// outstanding SUBSCRIBE/UNSUBSCRIBE (for SUBACK/UNSUBACK correlation).
// Received messages are not routed through it: the engine delivers every
// PUBLISH only to its engine-level OnMessage callback, and a Subscription
// has no message callback of its own.
type Registry struct {
	mu         sync.Mutex
	byFilter   map[string]*Subscription
	byPacketID map[uint16]*Subscription
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		byFilter:   make(map[string]*Subscription),
		byPacketID: make(map[uint16]*Subscription),
	}
}

// Lookup returns the existing subscription for filter, if any.
func (r *Registry) Lookup(filter string) (*Subscription, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.byFilter[filter]
	return sub, ok
}

// Begin records a new pending subscription, indexed by filter and by the
// packet identifier of the SUBSCRIBE that will be sent for it.
func (r *Registry) Begin(filter string, requestedQoS uint8, packetID uint16, unsubscribeFn func(string) error) *Subscription {
	sub := &Subscription{
		Filter:        filter,
		RequestedQoS:  requestedQoS,
		PacketID:      packetID,
		state:         Pending,
		unsubscribeFn: unsubscribeFn,
	}
	r.mu.Lock()
	r.byFilter[filter] = sub
	r.byPacketID[packetID] = sub
	r.mu.Unlock()
	return sub
}

// ResolveSuback applies a SUBACK's granted QoS (or failure) to the
// subscription awaiting packetID, section 4.5.2. The packet-id index entry
// is dropped either way; the by-filter entry survives only on success.
func (r *Registry) ResolveSuback(packetID uint16, granted uint8, failed bool) (*Subscription, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.byPacketID[packetID]
	if !ok {
		return nil, false
	}
	delete(r.byPacketID, packetID)
	if failed {
		sub.setState(Error)
		delete(r.byFilter, sub.Filter)
		return sub, true
	}
	sub.GrantedQoS = granted
	sub.setState(Subscribed)
	return sub, true
}

// BeginUnsubscribe marks filter's subscription UnsubscriptionPending and
// indexes it under the UNSUBSCRIBE packet identifier; the by-filter entry
// is kept until UNSUBACK arrives.
func (r *Registry) BeginUnsubscribe(filter string, packetID uint16) (*Subscription, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.byFilter[filter]
	if !ok {
		return nil, false
	}
	sub.setState(UnsubscriptionPending)
	r.byPacketID[packetID] = sub
	return sub, true
}

// ResolveUnsuback completes an unsubscription, removing the handle from
// both indexes.
func (r *Registry) ResolveUnsuback(packetID uint16) (*Subscription, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.byPacketID[packetID]
	if !ok {
		return nil, false
	}
	delete(r.byPacketID, packetID)
	delete(r.byFilter, sub.Filter)
	sub.setState(Unsubscribed)
	return sub, true
}

// Drop removes filter's subscription unconditionally — used when the
// engine is not Connected and unsubscribe() degrades to a local-only drop.
func (r *Registry) Drop(filter string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sub, ok := r.byFilter[filter]; ok {
		sub.setState(Unsubscribed)
		delete(r.byFilter, filter)
	}
}

// All returns every currently tracked subscription, for sending an
// UNSUBSCRIBE-all on disconnect.
func (r *Registry) All() []*Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	subs := make([]*Subscription, 0, len(r.byFilter))
	for _, sub := range r.byFilter {
		subs = append(subs, sub)
	}
	return subs
}
