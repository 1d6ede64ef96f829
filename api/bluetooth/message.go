package bluetooth

// MessageTag identifies the kind of a Message.
type MessageTag byte

// The different message tags produced by a transport.
const (
	MessageNone MessageTag = iota
	MessageDataRead
	MessageAwaitingConnection
	MessageConnectionMade
	MessageProfileProxyReady
)

// messageTagNames holds the names of the different message tags.
var messageTagNames = map[MessageTag]string{
	MessageNone:               "none",
	MessageDataRead:           "data-read",
	MessageAwaitingConnection: "awaiting-connection",
	MessageConnectionMade:     "connection-made",
	MessageProfileProxyReady:  "profile-proxy-ready",
}

// String returns the name of the message tag.
func (m MessageTag) String() string {
	if name, ok := messageTagNames[m]; ok {
		return name
	}

	return "unknown"
}

// Message is a tagged notification produced by a transport worker.
type Message struct {
	Tag MessageTag

	// Payload holds the bytes read for a MessageDataRead message.
	Payload []byte

	// Proxy holds the profile proxy for a MessageProfileProxyReady message.
	Proxy ProfileProxy
}

// MessageSink accepts messages from a transport worker.
// Post must not block on the caller's behalf for longer than
// it takes to enqueue the message.
type MessageSink interface {
	Post(msg Message)
}

