package subscription

import "testing"

func TestRegistryLifecycle(t *testing.T) {
	r := NewRegistry()

	sub := r.Begin("a/b", 1, 10, nil)
	if sub.State() != Pending {
		t.Fatalf("new subscription state = %v, want Pending", sub.State())
	}

	if _, ok := r.Lookup("a/b"); !ok {
		t.Fatal("Lookup should find the pending subscription")
	}

	resolved, ok := r.ResolveSuback(10, 1, false)
	if !ok {
		t.Fatal("ResolveSuback should find the packet id")
	}
	if resolved.State() != Subscribed {
		t.Errorf("state after suback = %v, want Subscribed", resolved.State())
	}
	if resolved.GrantedQoS != 1 {
		t.Errorf("GrantedQoS = %d, want 1", resolved.GrantedQoS)
	}

	if _, ok := r.BeginUnsubscribe("a/b", 11); !ok {
		t.Fatal("BeginUnsubscribe should find the subscribed filter")
	}
	if _, ok := r.Lookup("a/b"); !ok {
		t.Error("subscription must remain in the by-filter index while unsubscription is pending")
	}

	final, ok := r.ResolveUnsuback(11)
	if !ok {
		t.Fatal("ResolveUnsuback should find the packet id")
	}
	if final.State() != Unsubscribed {
		t.Errorf("state after unsuback = %v, want Unsubscribed", final.State())
	}
	if _, ok := r.Lookup("a/b"); ok {
		t.Error("subscription should be gone from the by-filter index after unsuback")
	}
}

func TestRegistrySubackFailure(t *testing.T) {
	r := NewRegistry()
	r.Begin("x/y", 2, 1, nil)

	sub, ok := r.ResolveSuback(1, 0, true)
	if !ok {
		t.Fatal("ResolveSuback should find the packet id")
	}
	if sub.State() != Error {
		t.Errorf("state after failed suback = %v, want Error", sub.State())
	}
	if _, ok := r.Lookup("x/y"); ok {
		t.Error("a failed subscription should not remain in the by-filter index")
	}
}

func TestRegistryDrop(t *testing.T) {
	r := NewRegistry()
	r.Begin("x", 0, 1, nil)
	r.Drop("x")
	if _, ok := r.Lookup("x"); ok {
		t.Error("Drop should remove the filter from the registry")
	}
}

func TestSubscriptionUnsubscribeNoOpWhenNotSubscribed(t *testing.T) {
	called := false
	sub := &Subscription{Filter: "x", state: Pending, unsubscribeFn: func(string) error {
		called = true
		return nil
	}}
	if err := sub.Unsubscribe(); err != nil {
		t.Fatalf("Unsubscribe() = %v, want nil", err)
	}
	if called {
		t.Error("Unsubscribe should not call the callback unless state is Subscribed")
	}
}
