//go:build !linux

package platform

import (
	"github.com/bluetuith-org/simple-bluetooth/api/config"
	"github.com/bluetuith-org/simple-bluetooth/shim"
	"github.com/sirupsen/logrus"
)

// NewTransport returns a platform-specific transport.
func NewTransport(_ config.Configuration, _ *logrus.Logger) (Transport, PlatformInfo, error) {
	return &shim.ShimTransport{}, NewPlatformInfo(UnsupportedStack), nil
}
