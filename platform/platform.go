package platform

import (
	"runtime"

	"github.com/bluetuith-org/simple-bluetooth/api/bluetooth"
)

type BluetoothStack string

const (
	BluezStack       BluetoothStack = "BlueZ (DBus)"
	UnsupportedStack BluetoothStack = "Unsupported"
)

// PlatformInfo describes platform-specific information.
type PlatformInfo struct {
	OS    string         `json:"os,omitempty"`
	Stack BluetoothStack `json:"bluetooth_stack,omitempty"`
}

// Transport describes a platform transport, which holds
// host resources that must be released with Close.
type Transport interface {
	bluetooth.Transport

	Close() error
}

// NewPlatformInfo returns a new PlatformInfo.
func NewPlatformInfo(stack BluetoothStack) PlatformInfo {
	return PlatformInfo{
		OS:    runtime.GOOS + " (" + runtime.GOARCH + ")",
		Stack: stack,
	}
}

// String converts a BluetoothStack to a string.
func (b BluetoothStack) String() string {
	return string(b)
}
