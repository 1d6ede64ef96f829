//go:build linux

package dbushelper

import (
	"context"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fctx"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/bluetuith-org/simple-bluetooth/api/bluetooth"
	"github.com/bluetuith-org/simple-bluetooth/api/errorkinds"
	"github.com/godbus/dbus/v5"
)

// PublishSignalError publishes an error message with DBus signal data to the error event stream.
func PublishSignalError(err error, signal *dbus.Signal, message string, metadata ...string) {
	md := append([]string{"signal-name", signal.Name, "signal-path", string(signal.Path)}, metadata...)

	PublishError(err, message, md...)
}

// PublishError publishes an error to the error event stream.
func PublishError(err error, message string, metadata ...string) {
	bluetooth.ErrorEvents().Publish(errorkinds.GenericError{
		Errors: fault.Wrap(err,
			fctx.With(context.Background(), metadata...),
			ftag.With(ftag.Internal),
			fmsg.With(message),
		),
	})
}
