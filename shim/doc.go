// Package shim provides a transport for platforms where no
// Bluetooth stack is supported.
package shim
