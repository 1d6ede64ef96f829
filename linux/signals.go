//go:build linux

package linux

import (
	"path/filepath"
	"slices"

	"github.com/bluetuith-org/simple-bluetooth/api/bluetooth"
	"github.com/bluetuith-org/simple-bluetooth/api/errorkinds"
	dbh "github.com/bluetuith-org/simple-bluetooth/linux/internal/dbushelper"
	"github.com/godbus/dbus/v5"
)

// watchSignals will register a signal to receive events from the bluez dbus interface.
// The signal channel is closed when the bus connection is closed.
func (t *BluezTransport) watchSignals() {
	t.systemBus.BusObject().Call(dbh.DbusSignalAddMatchIface, 0, dbh.BluezSignalMatch)
	t.systemBus.Signal(t.signals)

	for signal := range t.signals {
		t.handleSignal(signal)
	}
}

// handleSignal translates bluez DBus signal data into adapter and device state events.
func (t *BluezTransport) handleSignal(signal *dbus.Signal) {
	switch signal.Name {
	case dbh.DbusSignalPropertyChangedIface:
		if len(signal.Body) < 2 {
			return
		}

		objectInterfaceName, ok := signal.Body[0].(string)
		if !ok {
			return
		}

		propertyMap, ok := signal.Body[1].(map[string]dbus.Variant)
		if !ok {
			return
		}

		switch objectInterfaceName {
		case dbh.BluezAdapterIface:
			t.adapterChanged(signal, propertyMap)

		case dbh.BluezDeviceIface:
			t.deviceChanged(signal, propertyMap)
		}

	case dbh.DbusSignalInterfacesAddedIface:
		if len(signal.Body) < 2 {
			return
		}

		objectPath, ok := signal.Body[0].(dbus.ObjectPath)
		if !ok {
			return
		}

		nestedPropertyMap, ok := signal.Body[1].(map[string]map[string]dbus.Variant)
		if !ok {
			return
		}

		if propertyMap, ok := nestedPropertyMap[dbh.BluezDeviceIface]; ok {
			if err := t.storeDevice(objectPath, propertyMap); err != nil {
				dbh.PublishSignalError(err, signal,
					"Bluez event handler error",
					"error_at", "iadded-device-decode",
				)
			}
		}

	case dbh.DbusSignalInterfacesRemovedIface:
		if len(signal.Body) < 2 {
			return
		}

		objectPath, ok := signal.Body[0].(dbus.ObjectPath)
		if !ok {
			return
		}

		ifaceNames, ok := signal.Body[1].([]string)
		if !ok {
			return
		}

		switch {
		case slices.Contains(ifaceNames, dbh.BluezAdapterIface):
			t.removeAdapter(objectPath)

		case slices.Contains(ifaceNames, dbh.BluezDeviceIface):
			t.removeDevice(objectPath)
		}
	}
}

// adapterChanged publishes adapter power and discovery changes of the selected adapter.
func (t *BluezTransport) adapterChanged(signal *dbus.Signal, propertyMap map[string]dbus.Variant) {
	if signal.Path != t.adapterPath {
		return
	}

	if powered, ok := boolProperty(propertyMap, "Powered"); ok {
		t.logger.WithField("enabled", powered).Debug("Adapter state changed")

		bluetooth.AdapterStateEvents().Publish(bluetooth.AdapterStateEvent{
			Address: t.adapterAddress,
			Enabled: powered,
		})
	}

	if discovering, ok := boolProperty(propertyMap, "Discovering"); ok {
		action := bluetooth.DiscoveryFinished
		if discovering {
			action = bluetooth.DiscoveryStarted
		}

		bluetooth.DeviceStateEvents().Publish(bluetooth.DeviceStateEvent{Action: action})
	}
}

// deviceChanged merges the changed properties into the cached device,
// and publishes connection changes.
// Devices of other adapters are ignored.
func (t *BluezTransport) deviceChanged(signal *dbus.Signal, propertyMap map[string]dbus.Variant) {
	if filepath.Dir(string(signal.Path)) != string(t.adapterPath) {
		return
	}

	address, ok := t.paths.Address(dbh.DbusPathDevice, signal.Path)
	if !ok {
		dbh.PublishSignalError(errorkinds.ErrDeviceNotFound, signal,
			"Bluez event handler error",
			"error_at", "pchanged-device-address",
		)

		return
	}

	device, _ := t.devices.Load(address)
	if err := dbh.MergeDevice(&device, propertyMap); err != nil {
		dbh.PublishSignalError(err, signal,
			"Bluez event handler error",
			"error_at", "pchanged-device-decode",
		)

		return
	}

	device.Address, device.AssociatedAdapter = address, t.adapterAddress
	t.devices.Store(address, device)

	if connected, ok := boolProperty(propertyMap, "Connected"); ok {
		action := bluetooth.DeviceDisconnected
		if connected {
			action = bluetooth.DeviceConnected
		}

		bluetooth.DeviceStateEvents().Publish(bluetooth.DeviceStateEvent{Action: action, Device: device})
	}
}

// boolProperty returns a boolean property from a map of properties.
func boolProperty(propertyMap map[string]dbus.Variant, name string) (bool, bool) {
	v, ok := propertyMap[name]
	if !ok {
		return false, false
	}

	value, ok := v.Value().(bool)

	return value, ok
}
