//go:build linux

package platform

import (
	"github.com/bluetuith-org/simple-bluetooth/api/config"
	"github.com/bluetuith-org/simple-bluetooth/linux"
	"github.com/sirupsen/logrus"
)

// NewTransport returns a platform-specific transport.
func NewTransport(cfg config.Configuration, logger *logrus.Logger) (Transport, PlatformInfo, error) {
	info := NewPlatformInfo(BluezStack)

	transport, err := linux.NewBluezTransport(cfg, logger)
	if err != nil {
		return nil, info, err
	}

	return transport, info, nil
}
