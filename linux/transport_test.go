//go:build linux

package linux

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/bluetuith-org/simple-bluetooth/api/bluetooth"
	"github.com/bluetuith-org/simple-bluetooth/api/config"
	"github.com/bluetuith-org/simple-bluetooth/api/errorkinds"
	dbh "github.com/bluetuith-org/simple-bluetooth/linux/internal/dbushelper"
	"github.com/bluetuith-org/simple-bluetooth/session"
	"github.com/godbus/dbus/v5"
	"github.com/google/uuid"
	"golang.org/x/sys/unix"
)

type objects = map[dbus.ObjectPath]map[string]map[string]dbus.Variant

type sinkRecorder struct {
	mu       sync.Mutex
	messages []bluetooth.Message
	posted   chan struct{}
}

func newSinkRecorder() *sinkRecorder {
	return &sinkRecorder{posted: make(chan struct{}, 64)}
}

func (s *sinkRecorder) Post(msg bluetooth.Message) {
	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.mu.Unlock()

	s.posted <- struct{}{}
}

func (s *sinkRecorder) wait(t *testing.T, n int) []bluetooth.Message {
	t.Helper()

	for range n {
		select {
		case <-s.posted:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %d messages", n)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]bluetooth.Message(nil), s.messages...)
}

func testObjects() objects {
	return objects{
		"/org/bluez/hci1": {
			"org.bluez.Adapter1": {"Address": dbus.MakeVariant("11:11:11:11:11:11")},
		},
		"/org/bluez/hci0": {
			"org.bluez.Adapter1": {"Address": dbus.MakeVariant("00:1A:7D:DA:71:13")},
		},
		"/org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF": {
			"org.bluez.Device1": {
				"Address": dbus.MakeVariant("AA:BB:CC:DD:EE:FF"),
				"Name":    dbus.MakeVariant("Speaker"),
				"Paired":  dbus.MakeVariant(true),
			},
		},
		"/org/bluez/hci0/dev_AA_BB_CC_DD_EE_01": {
			"org.bluez.Device1": {
				"Address": dbus.MakeVariant("AA:BB:CC:DD:EE:01"),
				"Name":    dbus.MakeVariant("Headset"),
			},
		},
		"/org/bluez/hci1/dev_22_22_22_22_22_22": {
			"org.bluez.Device1": {
				"Address": dbus.MakeVariant("22:22:22:22:22:22"),
				"Name":    dbus.MakeVariant("Other"),
			},
		},
	}
}

func newTestTransport(t *testing.T, adapter string) *BluezTransport {
	t.Helper()

	cfg := config.New()
	cfg.Adapter = adapter

	tr := newBluezTransport(cfg, nil)
	if err := tr.storeObjects(testObjects()); err != nil {
		t.Fatalf("storeObjects: %v", err)
	}

	return tr
}

func mustMAC(t *testing.T, s string) bluetooth.MacAddress {
	t.Helper()

	address, err := bluetooth.ParseMAC(s)
	if err != nil {
		t.Fatalf("ParseMAC(%q): %v", s, err)
	}

	return address
}

func TestAdapterSelection(t *testing.T) {
	tests := []struct {
		adapter string
		path    dbus.ObjectPath
		devices int
	}{
		{"", "/org/bluez/hci0", 2},
		{"hci1", "/org/bluez/hci1", 1},
		{"11:11:11:11:11:11", "/org/bluez/hci1", 1},
	}

	for _, test := range tests {
		tr := newTestTransport(t, test.adapter)

		if tr.adapterPath != test.path {
			t.Errorf("adapter %q: path = %s, want %s", test.adapter, tr.adapterPath, test.path)
		}

		devices, err := tr.Devices()
		if err != nil {
			t.Fatal(err)
		}
		if len(devices) != test.devices {
			t.Errorf("adapter %q: %d devices, want %d", test.adapter, len(devices), test.devices)
		}
		for _, device := range devices {
			if device.AssociatedAdapter != tr.adapterAddress {
				t.Errorf("device %s associated with %s", device.Address, device.AssociatedAdapter)
			}
		}
	}
}

func TestAdapterNotFound(t *testing.T) {
	cfg := config.New()
	cfg.Adapter = "hci9"

	err := newBluezTransport(cfg, nil).storeObjects(testObjects())
	if !errors.Is(err, errorkinds.ErrAdapterNotFound) {
		t.Fatalf("err = %v, want ErrAdapterNotFound", err)
	}
}

func TestDevicesAndFindByName(t *testing.T) {
	tr := newTestTransport(t, "")

	devices, _ := tr.Devices()
	if devices[0].Name != "Headset" || devices[1].Name != "Speaker" {
		t.Errorf("devices not ordered by name: %v", devices)
	}

	device, ok := tr.FindDeviceByName("Speaker")
	if !ok || device.Address != mustMAC(t, "AA:BB:CC:DD:EE:FF") {
		t.Errorf("FindDeviceByName = %+v, %v", device, ok)
	}

	if _, ok := tr.FindDeviceByName("Other"); ok {
		t.Error("found a device of another adapter")
	}
}

func TestAdapterSignals(t *testing.T) {
	tr := newTestTransport(t, "")

	adapterSub, _ := bluetooth.AdapterStateEvents().Subscribe()
	defer adapterSub.Unsubscribe()
	deviceSub, _ := bluetooth.DeviceStateEvents().Subscribe()
	defer deviceSub.Unsubscribe()

	tr.handleSignal(&dbus.Signal{
		Path: "/org/bluez/hci1",
		Name: "org.freedesktop.DBus.Properties.PropertiesChanged",
		Body: []any{"org.bluez.Adapter1", map[string]dbus.Variant{"Powered": dbus.MakeVariant(true)}},
	})
	tr.handleSignal(&dbus.Signal{
		Path: "/org/bluez/hci0",
		Name: "org.freedesktop.DBus.Properties.PropertiesChanged",
		Body: []any{"org.bluez.Adapter1", map[string]dbus.Variant{
			"Powered":     dbus.MakeVariant(false),
			"Discovering": dbus.MakeVariant(true),
		}},
	})

	select {
	case ev := <-adapterSub.Events:
		if ev.Enabled || ev.Address != tr.adapterAddress {
			t.Errorf("adapter event = %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no adapter state event")
	}

	select {
	case ev := <-deviceSub.Events:
		if ev.Action != bluetooth.DiscoveryStarted {
			t.Errorf("device event = %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no discovery event")
	}

	select {
	case ev := <-adapterSub.Events:
		t.Errorf("unexpected event for another adapter: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDeviceSignals(t *testing.T) {
	tr := newTestTransport(t, "")
	address := mustMAC(t, "AA:BB:CC:DD:EE:FF")

	sub, _ := bluetooth.DeviceStateEvents().Subscribe()
	defer sub.Unsubscribe()

	tr.handleSignal(&dbus.Signal{
		Path: "/org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF",
		Name: "org.freedesktop.DBus.Properties.PropertiesChanged",
		Body: []any{"org.bluez.Device1", map[string]dbus.Variant{"Connected": dbus.MakeVariant(true)}},
	})

	select {
	case ev := <-sub.Events:
		if ev.Action != bluetooth.DeviceConnected || ev.Device.Address != address || ev.Device.Name != "Speaker" {
			t.Errorf("device event = %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no device state event")
	}

	if device, _ := tr.devices.Load(address); !device.Connected {
		t.Error("cached device was not updated")
	}

	tr.handleSignal(&dbus.Signal{
		Path: "/",
		Name: "org.freedesktop.DBus.ObjectManager.InterfacesAdded",
		Body: []any{
			dbus.ObjectPath("/org/bluez/hci0/dev_AA_BB_CC_DD_EE_02"),
			map[string]map[string]dbus.Variant{
				"org.bluez.Device1": {
					"Address": dbus.MakeVariant("AA:BB:CC:DD:EE:02"),
					"Alias":   dbus.MakeVariant("Keyboard"),
				},
			},
		},
	})

	if _, ok := tr.FindDeviceByName("Keyboard"); !ok {
		t.Fatal("added device was not stored")
	}

	tr.handleSignal(&dbus.Signal{
		Path: "/",
		Name: "org.freedesktop.DBus.ObjectManager.InterfacesRemoved",
		Body: []any{
			dbus.ObjectPath("/org/bluez/hci0/dev_AA_BB_CC_DD_EE_02"),
			[]string{"org.bluez.Device1"},
		},
	})

	if _, ok := tr.FindDeviceByName("Keyboard"); ok {
		t.Fatal("removed device is still stored")
	}
}

func TestUnknownDeviceSignal(t *testing.T) {
	tr := newTestTransport(t, "")

	sub, _ := bluetooth.ErrorEvents().Subscribe()
	defer sub.Unsubscribe()

	tr.handleSignal(&dbus.Signal{
		Path: "/org/bluez/hci0/dev_99_99_99_99_99_99",
		Name: "org.freedesktop.DBus.Properties.PropertiesChanged",
		Body: []any{"org.bluez.Device1", map[string]dbus.Variant{"Connected": dbus.MakeVariant(true)}},
	})

	select {
	case ev := <-sub.Events:
		if !errors.Is(ev.Errors, errorkinds.ErrDeviceNotFound) {
			t.Errorf("error event = %v", ev.Errors)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no error event")
	}
}

func TestOtherAdapterDeviceSignal(t *testing.T) {
	tr := newTestTransport(t, "")

	errSub, _ := bluetooth.ErrorEvents().Subscribe()
	defer errSub.Unsubscribe()
	deviceSub, _ := bluetooth.DeviceStateEvents().Subscribe()
	defer deviceSub.Unsubscribe()

	tr.handleSignal(&dbus.Signal{
		Path: "/org/bluez/hci1/dev_22_22_22_22_22_22",
		Name: "org.freedesktop.DBus.Properties.PropertiesChanged",
		Body: []any{"org.bluez.Device1", map[string]dbus.Variant{"Connected": dbus.MakeVariant(true)}},
	})

	select {
	case ev := <-errSub.Events:
		t.Errorf("unexpected error event: %v", ev.Errors)
	case ev := <-deviceSub.Events:
		t.Errorf("unexpected device event: %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestAdapterRemovedSignal(t *testing.T) {
	tr := newTestTransport(t, "")

	sub, _ := bluetooth.AdapterStateEvents().Subscribe()
	defer sub.Unsubscribe()

	tr.handleSignal(&dbus.Signal{
		Path: "/",
		Name: "org.freedesktop.DBus.ObjectManager.InterfacesRemoved",
		Body: []any{dbus.ObjectPath("/org/bluez/hci1"), []string{"org.bluez.Adapter1"}},
	})

	if devices, _ := tr.Devices(); len(devices) != 2 {
		t.Fatalf("removing another adapter changed the cache: %v", devices)
	}

	tr.handleSignal(&dbus.Signal{
		Path: "/",
		Name: "org.freedesktop.DBus.ObjectManager.InterfacesRemoved",
		Body: []any{dbus.ObjectPath("/org/bluez/hci0"), []string{"org.bluez.Adapter1", "org.bluez.Media1"}},
	})

	select {
	case ev := <-sub.Events:
		if ev.Enabled || ev.Address != tr.adapterAddress {
			t.Errorf("adapter event = %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no adapter state event")
	}

	if devices, _ := tr.Devices(); len(devices) != 0 {
		t.Errorf("devices still cached: %v", devices)
	}
	if _, ok := tr.paths.DbusPath(dbh.DbusPathDevice, mustMAC(t, "AA:BB:CC:DD:EE:FF")); ok {
		t.Error("device path still mapped")
	}
}

func TestProfileProxy(t *testing.T) {
	tr := newTestTransport(t, "")
	sink := newSinkRecorder()
	tr.Bind(sink)

	if err := tr.SetupProfileConnection(); err != nil {
		t.Fatal(err)
	}

	messages := sink.wait(t, 1)
	if messages[0].Tag != bluetooth.MessageProfileProxyReady || messages[0].Proxy == nil {
		t.Fatalf("message = %+v", messages[0])
	}
	if got := messages[0].Proxy.Profile(); got != bluetooth.AudioSinkUUID {
		t.Errorf("profile = %s", got)
	}

	other := newTestTransport(t, "")
	err := other.ConnectProfileProxy(messages[0].Proxy, bluetooth.DeviceData{})
	if !errors.Is(err, errorkinds.ErrProfileProxy) {
		t.Errorf("foreign proxy: err = %v", err)
	}

	err = tr.ConnectProfileProxy(messages[0].Proxy, bluetooth.DeviceData{Address: mustMAC(t, "99:99:99:99:99:99")})
	if !errors.Is(err, errorkinds.ErrDeviceNotFound) {
		t.Errorf("unknown device: err = %v", err)
	}

	tr.cfg.ProfileUUID = uuid.Nil
	if err := tr.SetupProfileConnection(); !errors.Is(err, errorkinds.ErrProfileProxy) {
		t.Errorf("no profile: err = %v", err)
	}
}

func TestSendWithoutConnection(t *testing.T) {
	tr := newTestTransport(t, "")

	if err := tr.SendBytes([]byte("x")); !errors.Is(err, errorkinds.ErrNotConnected) {
		t.Fatalf("err = %v, want ErrNotConnected", err)
	}
	if err := tr.CloseAll(); err != nil {
		t.Fatalf("CloseAll: %v", err)
	}
}

type errorRecorder struct {
	bluetooth.NopListener

	errs chan error
}

func (l *errorRecorder) OnError(err error) {
	l.errs <- err
}

func TestDialFailureReachesListener(t *testing.T) {
	cfg := config.New()
	cfg.RFCOMMChannel = 0

	tr := newBluezTransport(cfg, nil)
	listener := &errorRecorder{errs: make(chan error, 4)}

	s, err := session.New(tr, session.WithListener(listener))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Teardown()

	if err := tr.Connect(mustMAC(t, "AA:BB:CC:DD:EE:FF")); err != nil {
		t.Fatal(err)
	}

	select {
	case err := <-listener.errs:
		if err == nil {
			t.Error("listener received a nil error")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("the dial failure did not reach the listener")
	}
}

func TestCloseAllUnblocksAccept(t *testing.T) {
	tr := newTestTransport(t, "")

	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := unix.Bind(fd, &unix.SockaddrUnix{Name: filepath.Join(t.TempDir(), "server.sock")}); err != nil {
		_ = unix.Close(fd)
		t.Fatal(err)
	}
	if err := unix.Listen(fd, 1); err != nil {
		_ = unix.Close(fd)
		t.Fatal(err)
	}

	sub, _ := bluetooth.ErrorEvents().Subscribe()
	defer sub.Unsubscribe()

	server := &rfcommServer{fd: fd}
	tr.server.Store(server)

	done := make(chan struct{})
	go func() {
		tr.accept(server)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)

	if err := tr.CloseAll(); err != nil {
		t.Fatalf("CloseAll: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("accept did not return after CloseAll")
	}

	select {
	case ev := <-sub.Events:
		t.Errorf("unexpected error event: %v", ev.Errors)
	case <-time.After(100 * time.Millisecond):
	}

	if !server.released {
		t.Error("server socket was not released")
	}
	if err := server.shutdown(); err != nil {
		t.Errorf("shutdown after release: %v", err)
	}
}

func TestServeConnection(t *testing.T) {
	tr := newTestTransport(t, "")
	sink := newSinkRecorder()
	tr.Bind(sink)

	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		t.Fatal(err)
	}

	local, err := socketFile(fds[0])
	if err != nil {
		t.Fatal(err)
	}
	peer := os.NewFile(uintptr(fds[1]), "peer")
	defer peer.Close()

	remote := mustMAC(t, "AA:BB:CC:DD:EE:FF")

	done := make(chan struct{})
	go func() {
		tr.serve(remote, local)
		close(done)
	}()

	if messages := sink.wait(t, 1); messages[0].Tag != bluetooth.MessageConnectionMade {
		t.Fatalf("first message = %s", messages[0].Tag)
	}

	if _, err := peer.Write([]byte("AB")); err != nil {
		t.Fatal(err)
	}

	messages := sink.wait(t, 1)
	if last := messages[len(messages)-1]; last.Tag != bluetooth.MessageDataRead || string(last.Payload) != "AB" {
		t.Fatalf("data message = %s %q", last.Tag, last.Payload)
	}

	if err := tr.SendBytes([]byte{0x41}); err != nil {
		t.Fatalf("SendBytes: %v", err)
	}

	buf := make([]byte, 1)
	if _, err := io.ReadFull(peer, buf); err != nil || buf[0] != 0x41 {
		t.Fatalf("peer read %v, %v", buf, err)
	}

	if err := tr.CloseAll(); err != nil {
		t.Fatalf("CloseAll: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("connection was not closed")
	}

	if err := tr.SendBytes([]byte("x")); !errors.Is(err, errorkinds.ErrNotConnected) {
		t.Errorf("send after close: err = %v", err)
	}
}
