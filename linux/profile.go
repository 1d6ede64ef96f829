//go:build linux

package linux

import (
	"context"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fctx"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/bluetuith-org/simple-bluetooth/api/bluetooth"
	"github.com/bluetuith-org/simple-bluetooth/api/errorkinds"
	dbh "github.com/bluetuith-org/simple-bluetooth/linux/internal/dbushelper"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// profileProxy is a handle to a Bluez profile, bound to the transport that created it.
type profileProxy struct {
	profile uuid.UUID
	t       *BluezTransport
}

// Profile returns the UUID of the profile the proxy serves.
func (p *profileProxy) Profile() uuid.UUID {
	return p.profile
}

// SetupProfileConnection requests a proxy for the configured profile.
// The proxy is delivered asynchronously as a MessageProfileProxyReady message.
func (t *BluezTransport) SetupProfileConnection() error {
	if t.cfg.ProfileUUID == uuid.Nil {
		return fault.Wrap(errorkinds.ErrProfileProxy,
			fctx.With(context.Background(), "error_at", "profile-setup"),
			ftag.With(ftag.InvalidArgument),
			fmsg.With("No profile is configured"),
		)
	}

	proxy := &profileProxy{profile: t.cfg.ProfileUUID, t: t}

	go t.post(bluetooth.Message{Tag: bluetooth.MessageProfileProxyReady, Proxy: proxy})

	return nil
}

// ConnectProfileProxy connects the device to the profile served by the proxy.
// The connection attempt itself completes asynchronously; failures are
// published on the error event stream.
func (t *BluezTransport) ConnectProfileProxy(proxy bluetooth.ProfileProxy, device bluetooth.DeviceData) error {
	p, ok := proxy.(*profileProxy)
	if !ok || p.t != t {
		return fault.Wrap(errorkinds.ErrProfileProxy,
			fctx.With(context.Background(), "error_at", "profile-connect-proxy"),
			ftag.With(ftag.InvalidArgument),
			fmsg.With("The profile proxy was not created by this transport"),
		)
	}

	path, ok := t.paths.DbusPath(dbh.DbusPathDevice, device.Address)
	if !ok {
		return fault.Wrap(errorkinds.ErrDeviceNotFound,
			fctx.With(context.Background(),
				"error_at", "profile-connect-path",
				"address", device.Address.String(),
			),
			ftag.With(ftag.NotFound),
			fmsg.With("The device was not found"),
		)
	}

	t.logger.WithFields(logrus.Fields{
		"address": device.Address.String(),
		"profile": p.profile.String(),
	}).Debug("Connecting profile")

	go func() {
		if err := t.systemBus.Object(dbh.BluezBusName, path).
			Call(dbh.BluezDeviceIface+".ConnectProfile", 0, p.profile.String()).
			Store(); err != nil {
			dbh.PublishError(err, "An error occurred while connecting the profile",
				"error_at", "device-connect-profile",
				"address", device.Address.String(),
				"profile", p.profile.String(),
			)
		}
	}()

	return nil
}
