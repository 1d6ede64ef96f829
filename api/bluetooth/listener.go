package bluetooth

// Listener describes the notifications a session delivers to its caller.
// All methods are called from the session's dispatch goroutine, one at a time.
type Listener interface {
	// OnDataReceived is called with the raw bytes read from a connection,
	// along with their decoded text form.
	OnDataReceived(data []byte, text string)

	// OnDeviceConnected is called when a remote device connects.
	OnDeviceConnected(device DeviceData)

	// OnDeviceDisconnected is called when a remote device disconnects.
	OnDeviceDisconnected(device DeviceData)

	// OnDiscoveryStarted is called when the adapter starts discovering devices.
	OnDiscoveryStarted()

	// OnDiscoveryFinished is called when the adapter stops discovering devices.
	OnDiscoveryFinished()
}

// ErrorListener can be implemented by a Listener to receive errors
// returned by the transport while handling asynchronous messages.
type ErrorListener interface {
	OnError(err error)
}

// NopListener ignores all notifications. It can be embedded to
// implement only the required methods of a Listener.
type NopListener struct{}

// OnDataReceived does not do anything.
func (NopListener) OnDataReceived([]byte, string) {}

// OnDeviceConnected does not do anything.
func (NopListener) OnDeviceConnected(DeviceData) {}

// OnDeviceDisconnected does not do anything.
func (NopListener) OnDeviceDisconnected(DeviceData) {}

// OnDiscoveryStarted does not do anything.
func (NopListener) OnDiscoveryStarted() {}

// OnDiscoveryFinished does not do anything.
func (NopListener) OnDiscoveryFinished() {}
