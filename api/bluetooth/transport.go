package bluetooth

import (
	"time"

	"github.com/google/uuid"
)

// AudioSinkUUID is the A2DP Audio Sink profile UUID.
var AudioSinkUUID = uuid.MustParse("0000110b-0000-1000-8000-00805f9b34fb")

// ProfileProxy describes a handle to a host profile service, which is
// delivered asynchronously after SetupProfileConnection is called.
type ProfileProxy interface {
	// Profile returns the UUID of the profile the proxy serves.
	Profile() uuid.UUID
}

// Transport describes the host Bluetooth stack operations a session delegates to.
// Operations that initiate connections return once the attempt is started;
// their outcome is reported later through the bound MessageSink.
type Transport interface {
	// Bind attaches the sink that receives the transport's asynchronous messages.
	Bind(sink MessageSink)

	// CheckEnabled returns whether the adapter is powered on.
	CheckEnabled() (bool, error)

	// RequestEnable asks the host to power on the adapter.
	RequestEnable() error

	// Connect starts a serial connection to a device.
	Connect(address MacAddress) error

	// CreateServerSocket starts listening for a single incoming serial connection.
	CreateServerSocket() error

	// ConnectToServer starts a connection to a server created on another device.
	ConnectToServer(address MacAddress) error

	// FindDeviceByName returns a known device with the provided name.
	FindDeviceByName(name string) (DeviceData, bool)

	// SetupProfileConnection requests a profile proxy, which is
	// delivered as a MessageProfileProxyReady message.
	SetupProfileConnection() error

	// ConnectProfileProxy connects the device using the provided profile proxy.
	ConnectProfileProxy(proxy ProfileProxy, device DeviceData) error

	// SendBytes writes the payload to the active connection.
	SendBytes(payload []byte) error

	// CloseAll closes all connections and listening sockets.
	CloseAll() error

	// EnableDiscoverability makes the adapter discoverable for the provided duration.
	EnableDiscoverability(duration time.Duration) error

	// StartDiscovery starts discovering nearby devices.
	StartDiscovery() error

	// Devices returns the devices known to the adapter.
	Devices() ([]DeviceData, error)
}
