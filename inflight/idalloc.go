package inflight

import (
	"math/rand/v2"
	"sync"
)

// IDAllocator hands out packet identifiers for QoS 1/2 exchanges. Each
// engine instance seeds its own counter randomly so two clients started in
// the same process don't walk identical identifier sequences; the counter
// then rotates through the 16-bit space, skipping 0 (reserved, section
// 2.3.1 — a packet identifier of 0 is never valid).
type IDAllocator struct {
	mu   sync.Mutex
	next uint16
}

// NewIDAllocator returns an allocator seeded at a random nonzero value.
func NewIDAllocator() *IDAllocator {
	return &IDAllocator{next: uint16(rand.N(65535)) + 1}
}

// Next returns the next identifier in rotation, skipping 0.
func (a *IDAllocator) Next() uint16 {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := a.next
	a.next++
	if a.next == 0 {
		a.next = 1
	}
	return id
}
