//go:build !linux

package shim

import (
	"time"

	"github.com/bluetuith-org/simple-bluetooth/api/bluetooth"
	"github.com/bluetuith-org/simple-bluetooth/api/errorkinds"
)

// ShimTransport is used on platforms without a supported Bluetooth stack.
// Every operation reports errorkinds.ErrNotSupported.
type ShimTransport struct{}

var _ bluetooth.Transport = (*ShimTransport)(nil)

// Bind does nothing, since the shim never posts messages.
func (s *ShimTransport) Bind(bluetooth.MessageSink) {}

// CheckEnabled returns an error, since no adapter is available.
func (s *ShimTransport) CheckEnabled() (bool, error) {
	return false, errorkinds.ErrNotSupported
}

// RequestEnable returns an error.
func (s *ShimTransport) RequestEnable() error {
	return errorkinds.ErrNotSupported
}

// Connect returns an error.
func (s *ShimTransport) Connect(bluetooth.MacAddress) error {
	return errorkinds.ErrNotSupported
}

// CreateServerSocket returns an error.
func (s *ShimTransport) CreateServerSocket() error {
	return errorkinds.ErrNotSupported
}

// ConnectToServer returns an error.
func (s *ShimTransport) ConnectToServer(bluetooth.MacAddress) error {
	return errorkinds.ErrNotSupported
}

// FindDeviceByName never finds a device.
func (s *ShimTransport) FindDeviceByName(string) (bluetooth.DeviceData, bool) {
	return bluetooth.DeviceData{}, false
}

// SetupProfileConnection returns an error.
func (s *ShimTransport) SetupProfileConnection() error {
	return errorkinds.ErrNotSupported
}

// ConnectProfileProxy returns an error.
func (s *ShimTransport) ConnectProfileProxy(bluetooth.ProfileProxy, bluetooth.DeviceData) error {
	return errorkinds.ErrNotSupported
}

// SendBytes returns an error.
func (s *ShimTransport) SendBytes([]byte) error {
	return errorkinds.ErrNotSupported
}

// CloseAll succeeds, since no connections are ever opened.
func (s *ShimTransport) CloseAll() error {
	return nil
}

// EnableDiscoverability returns an error.
func (s *ShimTransport) EnableDiscoverability(time.Duration) error {
	return errorkinds.ErrNotSupported
}

// StartDiscovery returns an error.
func (s *ShimTransport) StartDiscovery() error {
	return errorkinds.ErrNotSupported
}

// Devices returns an error, since no devices can be listed.
func (s *ShimTransport) Devices() ([]bluetooth.DeviceData, error) {
	return nil, errorkinds.ErrNotSupported
}

// Close releases nothing.
func (s *ShimTransport) Close() error {
	return nil
}
