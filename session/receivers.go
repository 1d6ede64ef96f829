package session

import (
	"sync"

	"github.com/bluetuith-org/simple-bluetooth/api/bluetooth"
)

// receiver subscribes to a state event group on behalf of a session.
type receiver[T bluetooth.Events] struct {
	group bluetooth.EventGroup[T]

	sub *bluetooth.Subscriber[T]
	mu  sync.Mutex
}

// register subscribes to the event group, and calls deliver for each event
// until the subscription ends. It reports whether the subscription is active.
func (r *receiver[T]) register(deliver func(T)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sub != nil {
		return true
	}

	sub, ok := r.group.Subscribe()
	if !ok {
		return false
	}
	r.sub = sub

	go func() {
		for ev := range sub.Events {
			deliver(ev)
		}
	}()

	return true
}

// safeUnregister ends the subscription. It does nothing if the receiver
// was never registered, or was already unregistered.
func (r *receiver[T]) safeUnregister() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sub == nil {
		return
	}

	r.sub.Unsubscribe()
	r.sub = nil
}

// registered returns whether the receiver holds an active subscription.
func (r *receiver[T]) registered() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.sub != nil
}
