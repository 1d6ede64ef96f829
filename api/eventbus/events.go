package eventbus

import "sync"

// EventID represents a unique event ID.
type EventID interface {
	String() string
	Value() uint
}

// UnsubFunc describes a function to be called when unsubscribing from an event.
type UnsubFunc func()

// SubscriberID represents a subscriber ID.
type SubscriberID struct {
	C      chan any
	active bool
	unsub  UnsubFunc
}

// newSubscriberID returns a subscriber ID whose unsubscribe function
// runs at most once, however many times Unsubscribe is called.
func newSubscriberID(ch chan any, unsub UnsubFunc) SubscriberID {
	var once sync.Once

	return SubscriberID{
		C:      ch,
		active: true,
		unsub: func() {
			once.Do(unsub)
		},
	}
}

// Unsubscribe unsubscribes from the attached subscription.
// It is safe to call on a zero SubscriberID, and to call more than once.
func (s SubscriberID) Unsubscribe() {
	if s.unsub != nil {
		s.unsub()
	}
}

// IsActive returns if the subscriber can actually receive events.
func (s SubscriberID) IsActive() bool {
	return s.active
}
