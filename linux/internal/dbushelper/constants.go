//go:build linux

package dbushelper

// The DBus specific bus and property names.
const (
	DbusGetPropertiesIface = "org.freedesktop.DBus.Properties.Get"
	DbusSetPropertiesIface = "org.freedesktop.DBus.Properties.Set"
	DbusObjectManagerIface = "org.freedesktop.DBus.ObjectManager.GetManagedObjects"

	DbusSignalAddMatchIface          = "org.freedesktop.DBus.AddMatch"
	DbusSignalRemoveMatchIface       = "org.freedesktop.DBus.RemoveMatch"
	DbusSignalPropertyChangedIface   = "org.freedesktop.DBus.Properties.PropertiesChanged"
	DbusSignalInterfacesAddedIface   = "org.freedesktop.DBus.ObjectManager.InterfacesAdded"
	DbusSignalInterfacesRemovedIface = "org.freedesktop.DBus.ObjectManager.InterfacesRemoved"

	BluezBusName      = "org.bluez"
	BluezAdapterIface = "org.bluez.Adapter1"
	BluezDeviceIface  = "org.bluez.Device1"

	BluezSignalMatch = "type='signal', sender='org.bluez'"
)
