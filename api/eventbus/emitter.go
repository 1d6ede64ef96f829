package eventbus

import (
	"sync"

	"github.com/cskr/pubsub/v2"
)

// DefaultCapacity is the channel capacity of each subscriber of the default handler.
const DefaultCapacity = 10

// NilEventHandler represents a disabled event handler.
type NilEventHandler struct{}

// DefaultEventHandler represents an internal event handler.
type DefaultEventHandler struct {
	*pubsub.PubSub[uint, any]
}

// EventPublisher represents an interface that provides an event publisher.
type EventPublisher interface {
	// Publish publishes an event to the event stream.
	Publish(id uint, data any)
}

// EventSubscriber represents an interface that provides an event subscriber.
type EventSubscriber interface {
	// Subscribe subscribes to an event from the event stream.
	Subscribe(id uint) SubscriberID
}

// EventHandler represents an interface that provides an event publisher and subscriber.
type EventHandler interface {
	EventPublisher
	EventSubscriber
}

// eventHandler represents the main event handler.
type eventHandler struct {
	p EventPublisher
	s EventSubscriber

	mu sync.RWMutex
}

var eventEmitter eventHandler

func init() {
	RegisterEventHandler(DefaultHandler())
}

// RegisterEventHandler registers the event handler interface.
func RegisterEventHandler[H EventHandler](eh H) {
	eventEmitter.mu.Lock()
	defer eventEmitter.mu.Unlock()

	eventEmitter.p = eh
	eventEmitter.s = eh
}

// RegisterEventHandlers registers the event publisher and subscriber interfaces separately.
// For example: `RegisterEventHandlers(&eventPublisher{}, NilHandler())` can be called to only
// register an event publisher.
func RegisterEventHandlers[P EventPublisher, S EventSubscriber](p P, s S) {
	eventEmitter.mu.Lock()
	defer eventEmitter.mu.Unlock()

	eventEmitter.p = p
	eventEmitter.s = s
}

// DisableEvents unregisters the event handler.
func DisableEvents() {
	RegisterEventHandler(&NilEventHandler{})
}

// Publish calls the registered publisher handler.
func Publish(id EventID, data any) {
	if id == nil {
		return
	}

	eventEmitter.mu.RLock()
	p := eventEmitter.p
	eventEmitter.mu.RUnlock()

	p.Publish(id.Value(), data)
}

// Subscribe calls the registered subscriber handler.
func Subscribe(id EventID) SubscriberID {
	if id == nil {
		return (&NilEventHandler{}).Subscribe(0)
	}

	eventEmitter.mu.RLock()
	s := eventEmitter.s
	eventEmitter.mu.RUnlock()

	return s.Subscribe(id.Value())
}

// DefaultHandler returns the default event handler.
func DefaultHandler() *DefaultEventHandler {
	return &DefaultEventHandler{PubSub: pubsub.New[uint, any](DefaultCapacity)}
}

// NilHandler returns a disabled event handler.
func NilHandler() *NilEventHandler {
	return &NilEventHandler{}
}

// Publish publishes an event to the event stream. It blocks until every
// subscriber channel has accepted the event, so subscribers must keep
// receiving until their channel is closed.
func (d *DefaultEventHandler) Publish(id uint, data any) {
	d.Pub(data, id)
}

// Subscribe subscribes to an event from the event stream.
func (d *DefaultEventHandler) Subscribe(id uint) SubscriberID {
	ch := d.Sub(id)

	return newSubscriberID(ch, func() {
		go d.Unsub(ch, id)
	})
}

// Publish does not do anything.
func (n *NilEventHandler) Publish(uint, any) {
}

// Subscribe does not do anything.
func (n *NilEventHandler) Subscribe(uint) SubscriberID {
	ch := make(chan any)
	close(ch)

	return SubscriberID{C: ch}
}
