package bluetooth

import (
	"github.com/bluetuith-org/simple-bluetooth/api/errorkinds"
	"github.com/bluetuith-org/simple-bluetooth/api/eventbus"
)

// EventID represents a unique event ID.
type EventID byte

// The different types of event IDs.
const (
	EventNone EventID = iota // The zero value for this type.
	EventError
	EventAdapterState
	EventDeviceState
)

// eventNames holds names of different events.
var eventNames = map[EventID]string{
	EventNone:         "",
	EventError:        "error_event",
	EventAdapterState: "adapter_state_event",
	EventDeviceState:  "device_state_event",
}

// String returns the name of the event ID.
func (e EventID) String() string {
	return eventNames[e]
}

// Value returns the event ID.
func (e EventID) Value() uint {
	return uint(e)
}

// AdapterStateEvent is published when an adapter is powered on or off.
type AdapterStateEvent struct {
	Address MacAddress `json:"address,omitempty"`
	Enabled bool       `json:"enabled"`
}

// DeviceAction describes a change in the state of a device or of discovery.
type DeviceAction string

// The different device actions.
const (
	DeviceConnected    DeviceAction = "device-connected"
	DeviceDisconnected DeviceAction = "device-disconnected"
	DiscoveryStarted   DeviceAction = "discovery-started"
	DiscoveryFinished  DeviceAction = "discovery-finished"
)

// DeviceStateEvent is published when a device connects or disconnects,
// or when the adapter starts or stops discovering devices.
// Device is empty for discovery events.
type DeviceStateEvent struct {
	Action DeviceAction `json:"action"`
	Device DeviceData   `json:"device,omitempty"`
}

// Events defines a set of possible event data types.
type Events interface {
	errorkinds.GenericError | AdapterStateEvent | DeviceStateEvent
}

// Event represents a general event.
type Event[T Events] struct {
	// ID holds the event ID.
	ID EventID `json:"event_id,omitempty"`

	// Data holds the actual event data.
	Data T `json:"event_data,omitempty"`
}

// EventGroup publishes and subscribes to events of a single type.
type EventGroup[T Events] struct {
	// ID holds the event ID.
	ID EventID
}

// Subscriber describes a subscription to an event group.
// Events are delivered in publish order, and are queued while the
// receiver of Events is busy. Events is closed once the subscription
// ends, and queued events are discarded.
type Subscriber[T Events] struct {
	Events chan T

	Unsubscribe eventbus.UnsubFunc
}

// Publish publishes an event to the event stream.
func (e EventGroup[T]) Publish(data T) {
	eventbus.Publish(e.ID, Event[T]{e.ID, data})
}

// Subscribe subscribes to an event group, and returns a subscriber which can be used
// to receive and unsubscribe from the events.
func (e EventGroup[T]) Subscribe() (*Subscriber[T], bool) {
	id := eventbus.Subscribe(e.ID)

	sub := Subscriber[T]{
		Events:      make(chan T, 1),
		Unsubscribe: id.Unsubscribe,
	}

	if !id.IsActive() {
		close(sub.Events)
		return &sub, false
	}

	go sub.forward(id.C)

	return &sub, true
}

// forward queues events received from the event stream, and delivers them
// to the Events channel in order.
func (s *Subscriber[T]) forward(in <-chan any) {
	defer close(s.Events)

	var queue []T

	for {
		var (
			out  chan T
			next T
		)
		if len(queue) > 0 {
			out, next = s.Events, queue[0]
		}

		select {
		case data, ok := <-in:
			if !ok {
				return
			}

			if v, ok := data.(Event[T]); ok {
				queue = append(queue, v.Data)
			}

		case out <- next:
			var zero T
			queue[0] = zero
			queue = queue[1:]
		}
	}
}

// AdapterStateEvents returns an event interface to subscribe to adapter state events.
func AdapterStateEvents() EventGroup[AdapterStateEvent] {
	return EventGroup[AdapterStateEvent]{ID: EventAdapterState}
}

// DeviceStateEvents returns an event interface to subscribe to device state events.
func DeviceStateEvents() EventGroup[DeviceStateEvent] {
	return EventGroup[DeviceStateEvent]{ID: EventDeviceState}
}

// ErrorEvents returns an event interface to subscribe to error events.
func ErrorEvents() EventGroup[errorkinds.GenericError] {
	return EventGroup[errorkinds.GenericError]{ID: EventError}
}
