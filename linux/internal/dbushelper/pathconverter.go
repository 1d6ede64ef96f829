//go:build linux

package dbushelper

import (
	"strings"

	"github.com/bluetuith-org/simple-bluetooth/api/bluetooth"
	"github.com/godbus/dbus/v5"
	"github.com/puzpuzpuz/xsync/v3"
)

// DbusPathType represents the type of DBus path in the Bluez DBus service.
type DbusPathType int

// The different Bluez DBus path types.
const (
	DbusPathDevice DbusPathType = iota
	DbusPathAdapter
)

// dbusPath holds the Bluez DBus path and its type.
type dbusPath struct {
	pathType DbusPathType
	path     dbus.ObjectPath
}

// PathConverter maps Bluez DBus paths to their respective Bluetooth addresses.
type PathConverter struct {
	paths *xsync.MapOf[dbusPath, bluetooth.MacAddress]
}

// NewPathConverter returns a new, empty PathConverter.
func NewPathConverter() *PathConverter {
	return &PathConverter{paths: xsync.NewMapOf[dbusPath, bluetooth.MacAddress]()}
}

// AddDbusPath adds a mapping of a Bluez DBus path and a Bluetooth address to the path converter.
func (d *PathConverter) AddDbusPath(pathType DbusPathType, path dbus.ObjectPath, address bluetooth.MacAddress) {
	d.paths.Store(dbusPath{pathType: pathType, path: path}, address)
}

// RemoveDbusPath removes a mapping of a Bluez DBus path and a Bluetooth address from the path converter.
func (d *PathConverter) RemoveDbusPath(pathType DbusPathType, path dbus.ObjectPath) {
	d.paths.Delete(dbusPath{pathType: pathType, path: path})
}

// RemoveAdapterDbusPath removes mappings of a Bluez DBus adapter path and its associated devices.
func (d *PathConverter) RemoveAdapterDbusPath(path dbus.ObjectPath) {
	d.RemoveDbusPath(DbusPathAdapter, path)

	prefix := string(path) + "/"
	d.paths.Range(func(p dbusPath, _ bluetooth.MacAddress) bool {
		if p.pathType == DbusPathDevice && strings.HasPrefix(string(p.path), prefix) {
			d.paths.Delete(p)
		}

		return true
	})
}

// Address returns a Bluetooth address that is mapped to the provided Bluez DBus path.
func (d *PathConverter) Address(pathType DbusPathType, path dbus.ObjectPath) (bluetooth.MacAddress, bool) {
	return d.paths.Load(dbusPath{pathType: pathType, path: path})
}

// DbusPath returns a Bluez DBus path that is mapped to the provided Bluetooth address.
func (d *PathConverter) DbusPath(pathType DbusPathType, address bluetooth.MacAddress) (dbus.ObjectPath, bool) {
	var dpath dbus.ObjectPath

	d.paths.Range(func(p dbusPath, addr bluetooth.MacAddress) bool {
		if address == addr && p.pathType == pathType {
			dpath = p.path

			return false
		}

		return true
	})

	return dpath, dpath != ""
}
