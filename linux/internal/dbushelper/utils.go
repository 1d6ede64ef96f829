//go:build linux

package dbushelper

import (
	"slices"

	"github.com/godbus/dbus/v5"
)

// BluezAvailable reports whether the Bluez service is activatable on the provided DBus connection.
func BluezAvailable(conn *dbus.Conn) (bool, error) {
	var names []string

	if err := conn.Object("org.freedesktop.DBus", "/org/freedesktop/DBus").
		Call("org.freedesktop.DBus.ListActivatableNames", 0).
		Store(&names); err != nil {
		return false, err
	}

	return slices.Contains(names, BluezBusName), nil
}
