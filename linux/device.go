//go:build linux

package linux

import (
	"slices"
	"strings"

	"github.com/bluetuith-org/simple-bluetooth/api/bluetooth"
)

// Devices returns the devices known to the adapter, ordered by name.
func (t *BluezTransport) Devices() ([]bluetooth.DeviceData, error) {
	devices := make([]bluetooth.DeviceData, 0, t.devices.Size())

	t.devices.Range(func(_ bluetooth.MacAddress, device bluetooth.DeviceData) bool {
		devices = append(devices, device)

		return true
	})

	slices.SortFunc(devices, func(a, b bluetooth.DeviceData) int {
		if c := strings.Compare(a.DisplayName(), b.DisplayName()); c != 0 {
			return c
		}

		return strings.Compare(a.Address.String(), b.Address.String())
	})

	return devices, nil
}

// FindDeviceByName returns a known device with the provided name or alias.
// Paired devices are preferred over unpaired ones with the same name.
func (t *BluezTransport) FindDeviceByName(name string) (bluetooth.DeviceData, bool) {
	var (
		found bluetooth.DeviceData
		ok    bool
	)

	t.devices.Range(func(_ bluetooth.MacAddress, device bluetooth.DeviceData) bool {
		if !device.MatchName(name) {
			return true
		}

		found, ok = device, true

		return !device.Paired
	})

	return found, ok
}
