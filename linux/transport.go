//go:build linux

package linux

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fctx"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/bluetuith-org/simple-bluetooth/api/bluetooth"
	"github.com/bluetuith-org/simple-bluetooth/api/config"
	"github.com/bluetuith-org/simple-bluetooth/api/errorkinds"
	dbh "github.com/bluetuith-org/simple-bluetooth/linux/internal/dbushelper"
	"github.com/godbus/dbus/v5"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"
)

// BluezTransport describes a transport that forwards to the Bluez daemon
// via DBus, and to the kernel's RFCOMM socket family for serial connections.
type BluezTransport struct {
	systemBus *dbus.Conn
	signals   chan *dbus.Signal

	cfg    config.Configuration
	logger *logrus.Logger

	adapterPath    dbus.ObjectPath
	adapterAddress bluetooth.MacAddress

	paths   *dbh.PathConverter
	devices *xsync.MapOf[bluetooth.MacAddress, bluetooth.DeviceData]

	conns  *xsync.MapOf[uint64, *rfcommConn]
	active atomic.Pointer[rfcommConn]
	server atomic.Pointer[rfcommServer]
	connID atomic.Uint64

	sink   bluetooth.MessageSink
	sinkMu sync.RWMutex

	closed atomic.Bool
}

var _ bluetooth.Transport = (*BluezTransport)(nil)

// NewBluezTransport attempts to connect to the Bluez daemon via the system bus,
// resolves the configured adapter and starts watching for adapter and device changes.
func NewBluezTransport(cfg config.Configuration, logger *logrus.Logger) (*BluezTransport, error) {
	systemBus, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fault.Wrap(err,
			fctx.With(context.Background(), "error_at", "start-systembus"),
			ftag.With(ftag.Internal),
			fmsg.With("Cannot initialize system DBus"),
		)
	}

	available, err := dbh.BluezAvailable(systemBus)
	if err == nil && !available {
		err = errorkinds.ErrNotSupported
	}
	if err != nil {
		_ = systemBus.Close()

		return nil, fault.Wrap(err,
			fctx.With(context.Background(), "error_at", "check-bluez"),
			ftag.With(ftag.Internal),
			fmsg.With("The Bluez daemon is not available"),
		)
	}

	t := newBluezTransport(cfg, logger)
	t.systemBus = systemBus

	if err := t.refreshObjects(); err != nil {
		_ = systemBus.Close()

		return nil, fault.Wrap(err,
			fctx.With(context.Background(), "error_at", "refresh-objects"),
			ftag.With(ftag.Internal),
			fmsg.With("Error while initializing the adapter and device cache"),
		)
	}

	go t.watchSignals()

	return t, nil
}

// newBluezTransport returns a transport without a bus connection.
func newBluezTransport(cfg config.Configuration, logger *logrus.Logger) *BluezTransport {
	if logger == nil {
		logger = cfg.Logger()
	}

	return &BluezTransport{
		cfg:     cfg,
		logger:  logger,
		signals: make(chan *dbus.Signal, 10),
		paths:   dbh.NewPathConverter(),
		devices: xsync.NewMapOf[bluetooth.MacAddress, bluetooth.DeviceData](),
		conns:   xsync.NewMapOf[uint64, *rfcommConn](),
	}
}

// Bind attaches the sink that receives the transport's asynchronous messages.
func (t *BluezTransport) Bind(sink bluetooth.MessageSink) {
	t.sinkMu.Lock()
	defer t.sinkMu.Unlock()

	t.sink = sink
}

// Close closes all connections and the DBus connection.
// Signals are no longer watched after Close returns.
func (t *BluezTransport) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}

	cerr := t.CloseAll()

	if t.systemBus != nil {
		t.systemBus.BusObject().Call(dbh.DbusSignalRemoveMatchIface, 0, dbh.BluezSignalMatch)
		if err := t.systemBus.Close(); err != nil {
			return fault.Wrap(err,
				fctx.With(context.Background(), "error_at", "stop-systembus"),
				ftag.With(ftag.Internal),
				fmsg.With("Error while closing system bus"),
			)
		}
	}

	return cerr
}

// post sends a message to the bound sink, if any.
func (t *BluezTransport) post(msg bluetooth.Message) {
	t.sinkMu.RLock()
	sink := t.sink
	t.sinkMu.RUnlock()

	if sink == nil {
		t.logger.WithField("tag", msg.Tag.String()).Debug("No sink bound, dropping message")

		return
	}

	sink.Post(msg)
}

// refreshObjects refreshes the adapter and device caches with objects
// that are retrieved from the Bluez DBus interface (system bus).
func (t *BluezTransport) refreshObjects() error {
	objects := make(map[dbus.ObjectPath]map[string]map[string]dbus.Variant)
	if err := t.systemBus.Object(dbh.BluezBusName, "/").
		Call(dbh.DbusObjectManagerIface, 0).
		Store(&objects); err != nil {
		return err
	}

	return t.storeObjects(objects)
}

// storeObjects selects the configured adapter from the provided objects,
// and stores every device associated with it.
func (t *BluezTransport) storeObjects(objects map[dbus.ObjectPath]map[string]map[string]dbus.Variant) error {
	for path, object := range objects {
		values, ok := object[dbh.BluezAdapterIface]
		if !ok || !t.matchAdapter(path, values) {
			continue
		}

		if t.adapterPath != "" && path > t.adapterPath {
			continue
		}

		address, err := addressProperty(values)
		if err != nil {
			return err
		}

		t.adapterPath, t.adapterAddress = path, address
	}

	if t.adapterPath == "" {
		return fault.Wrap(errorkinds.ErrAdapterNotFound,
			fctx.With(context.Background(), "error_at", "select-adapter", "adapter", t.cfg.Adapter),
			ftag.With(ftag.NotFound),
			fmsg.With("No matching Bluetooth adapter was found"),
		)
	}

	t.paths.AddDbusPath(dbh.DbusPathAdapter, t.adapterPath, t.adapterAddress)

	for path, object := range objects {
		values, ok := object[dbh.BluezDeviceIface]
		if !ok {
			continue
		}

		if err := t.storeDevice(path, values); err != nil {
			return err
		}
	}

	return nil
}

// matchAdapter reports whether the adapter object matches the configured adapter.
// An empty adapter setting matches every adapter, and the first one by path is selected.
func (t *BluezTransport) matchAdapter(path dbus.ObjectPath, values map[string]dbus.Variant) bool {
	if t.cfg.Adapter == "" || filepath.Base(string(path)) == t.cfg.Adapter {
		return true
	}

	address, err := addressProperty(values)

	return err == nil && address.String() == t.cfg.Adapter
}

// storeDevice decodes and stores a device if it belongs to the selected adapter.
func (t *BluezTransport) storeDevice(path dbus.ObjectPath, values map[string]dbus.Variant) error {
	if filepath.Dir(string(path)) != string(t.adapterPath) {
		return nil
	}

	device, err := dbh.DecodeDevice(values)
	if err != nil {
		return err
	}

	device.AssociatedAdapter = t.adapterAddress

	t.devices.Store(device.Address, device)
	t.paths.AddDbusPath(dbh.DbusPathDevice, path, device.Address)

	return nil
}

// removeDevice removes a device from the caches.
func (t *BluezTransport) removeDevice(path dbus.ObjectPath) {
	address, ok := t.paths.Address(dbh.DbusPathDevice, path)
	if !ok {
		return
	}

	t.devices.Delete(address)
	t.paths.RemoveDbusPath(dbh.DbusPathDevice, path)
}

// removeAdapter clears the caches when the selected adapter is removed,
// and reports the adapter as disabled.
func (t *BluezTransport) removeAdapter(path dbus.ObjectPath) {
	if path != t.adapterPath {
		return
	}

	t.paths.RemoveAdapterDbusPath(path)
	t.devices.Clear()

	t.logger.WithField("adapter", string(path)).Info("Adapter was removed")

	bluetooth.AdapterStateEvents().Publish(bluetooth.AdapterStateEvent{
		Address: t.adapterAddress,
		Enabled: false,
	})
}

// addressProperty returns the parsed "Address" property from a map of properties.
func addressProperty(values map[string]dbus.Variant) (bluetooth.MacAddress, error) {
	v, ok := values["Address"]
	if !ok {
		return bluetooth.MacAddress{}, errorkinds.ErrInvalidAddress
	}

	address, ok := v.Value().(string)
	if !ok {
		return bluetooth.MacAddress{}, errorkinds.ErrInvalidAddress
	}

	return bluetooth.ParseMAC(address)
}
