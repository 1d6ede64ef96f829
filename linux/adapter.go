//go:build linux

package linux

import (
	"context"
	"errors"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fctx"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/bluetuith-org/simple-bluetooth/api/config"
	dbh "github.com/bluetuith-org/simple-bluetooth/linux/internal/dbushelper"
	"github.com/godbus/dbus/v5"
)

// errDiscoveryInProgress is returned by Bluez if the adapter is already discovering.
const errDiscoveryInProgress = "org.bluez.Error.InProgress"

// CheckEnabled returns whether the adapter is powered on.
func (t *BluezTransport) CheckEnabled() (bool, error) {
	var powered bool

	if err := t.adapterProperty("Powered", &powered); err != nil {
		return false, fault.Wrap(err,
			fctx.With(context.Background(),
				"error_at", "adapter-get-powered",
				"address", t.adapterAddress.String(),
			),
			ftag.With(ftag.Internal),
			fmsg.With("An error occurred while getting the powered state"),
		)
	}

	return powered, nil
}

// RequestEnable asks Bluez to power on the adapter.
// The result is observed through the adapter state events.
func (t *BluezTransport) RequestEnable() error {
	if err := t.setAdapterProperty("Powered", true); err != nil {
		return fault.Wrap(err,
			fctx.With(context.Background(),
				"error_at", "adapter-setpowered-state",
				"address", t.adapterAddress.String(),
			),
			ftag.With(ftag.Internal),
			fmsg.With("An error occurred on setting powered state"),
		)
	}

	return nil
}

// EnableDiscoverability makes the adapter discoverable for the provided duration.
func (t *BluezTransport) EnableDiscoverability(duration time.Duration) error {
	if duration <= 0 || duration > config.MaxDiscoverableDuration {
		duration = t.cfg.DiscoverableDuration
	}

	if err := t.setAdapterProperty("DiscoverableTimeout", uint32(duration/time.Second)); err != nil {
		return fault.Wrap(err,
			fctx.With(context.Background(),
				"error_at", "adapter-setdiscoverable-timeout",
				"address", t.adapterAddress.String(),
			),
			ftag.With(ftag.Internal),
			fmsg.With("An error occurred on setting the discoverable timeout"),
		)
	}

	if err := t.setAdapterProperty("Discoverable", true); err != nil {
		return fault.Wrap(err,
			fctx.With(context.Background(),
				"error_at", "adapter-setdiscoverable-state",
				"address", t.adapterAddress.String(),
			),
			ftag.With(ftag.Internal),
			fmsg.With("An error occurred on setting discoverable state"),
		)
	}

	return nil
}

// StartDiscovery will put the adapter into "discovering" mode. An adapter
// that is already discovering is not treated as an error.
func (t *BluezTransport) StartDiscovery() error {
	err := t.callAdapter("StartDiscovery", 0).Store()

	var dbusErr dbus.Error
	if errors.As(err, &dbusErr) && dbusErr.Name == errDiscoveryInProgress {
		err = nil
	}

	if err != nil {
		return fault.Wrap(err,
			fctx.With(context.Background(),
				"error_at", "adapter-start-discovery",
				"address", t.adapterAddress.String(),
			),
			ftag.With(ftag.Internal),
			fmsg.With("An error occurred while starting device discovery"),
		)
	}

	return nil
}

// callAdapter is used to call a function on the adapter object.
func (t *BluezTransport) callAdapter(method string, flags dbus.Flags, args ...any) *dbus.Call {
	return t.systemBus.Object(dbh.BluezBusName, t.adapterPath).
		Call(dbh.BluezAdapterIface+"."+method, flags, args...)
}

// adapterProperty is used to get a property of the adapter object.
func (t *BluezTransport) adapterProperty(key string, value any) error {
	return t.systemBus.Object(dbh.BluezBusName, t.adapterPath).
		Call(dbh.DbusGetPropertiesIface, 0, dbh.BluezAdapterIface, key).
		Store(value)
}

// setAdapterProperty is used to set a property of the adapter object.
func (t *BluezTransport) setAdapterProperty(key string, value any) error {
	return t.systemBus.Object(dbh.BluezBusName, t.adapterPath).
		Call(dbh.DbusSetPropertiesIface, 0, dbh.BluezAdapterIface, key, dbus.MakeVariant(value)).
		Store()
}
