package eventbus

import (
	"testing"
	"time"
)

type testEventID uint

func (t testEventID) String() string { return "test_event" }
func (t testEventID) Value() uint    { return uint(t) }

func receive(t *testing.T, ch chan any) (any, bool) {
	t.Helper()

	select {
	case v, ok := <-ch:
		return v, ok
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting on subscriber channel")
	}

	return nil, false
}

func TestDefaultHandlerPublishSubscribe(t *testing.T) {
	h := DefaultHandler()
	defer h.Shutdown()

	sub := h.Subscribe(1)
	if !sub.IsActive() {
		t.Fatal("expected subscriber to be active")
	}

	h.Publish(2, "other")
	h.Publish(1, "hello")

	v, ok := receive(t, sub.C)
	if !ok || v != "hello" {
		t.Fatalf("got (%v, %v), want (hello, true)", v, ok)
	}
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	h := DefaultHandler()
	defer h.Shutdown()

	sub := h.Subscribe(1)
	sub.Unsubscribe()
	sub.Unsubscribe()

	if _, ok := receive(t, sub.C); ok {
		t.Fatal("expected channel to be closed after unsubscribing")
	}
}

func TestZeroSubscriberUnsubscribe(t *testing.T) {
	var sub SubscriberID

	sub.Unsubscribe()
	if sub.IsActive() {
		t.Fatal("zero subscriber must not be active")
	}
}

func TestNilHandler(t *testing.T) {
	sub := NilHandler().Subscribe(1)
	if sub.IsActive() {
		t.Fatal("nil handler subscriber must not be active")
	}

	if _, ok := <-sub.C; ok {
		t.Fatal("nil handler channel must be closed")
	}

	sub.Unsubscribe()
}

func TestRegisteredHandler(t *testing.T) {
	h := DefaultHandler()
	defer h.Shutdown()

	RegisterEventHandler(h)
	defer RegisterEventHandler(DefaultHandler())

	sub := Subscribe(testEventID(3))
	defer sub.Unsubscribe()

	Publish(nil, "dropped")
	Publish(testEventID(3), 42)

	if v, _ := receive(t, sub.C); v != 42 {
		t.Fatalf("got %v, want 42", v)
	}

	if Subscribe(nil).IsActive() {
		t.Fatal("subscribing to a nil event must not be active")
	}
}
