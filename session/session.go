// Package session provides a facade over a host Bluetooth transport.
//
// A Session gates every connection-related operation on adapter initialization,
// and re-dispatches asynchronous transport messages and adapter/device state
// broadcasts to a single Listener, in arrival order, from one dispatch goroutine.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fctx"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/bluetuith-org/simple-bluetooth/api/bluetooth"
	"github.com/bluetuith-org/simple-bluetooth/api/config"
	"github.com/bluetuith-org/simple-bluetooth/api/errorkinds"
	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
)

// KindIllegalState tags errors returned by operations invoked before initialization.
const KindIllegalState ftag.Kind = "ILLEGAL_STATE"

// Session describes a single Bluetooth session.
//
// The initialization flag is atomic, and may be read and written from any goroutine.
// The recorded target device and the progress state are owned by the dispatch
// goroutine, and are only modified by messages posted to the mailbox.
type Session struct {
	transport bluetooth.Transport
	handler   Handler
	notifier  bluetooth.Notifier
	logger    *logrus.Logger
	cfg       config.Configuration
	charset   encoding.Encoding

	listener   bluetooth.Listener
	listenerMu sync.RWMutex

	initialized atomic.Bool
	closed      atomic.Bool
	attempts    atomic.Int64

	mailbox chan mail
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}

	adapterReceiver receiver[bluetooth.AdapterStateEvent]
	deviceReceiver  receiver[bluetooth.DeviceStateEvent]
	errorReceiver   receiver[errorkinds.GenericError]

	ready   chan struct{}
	readyMu sync.Mutex

	// Owned by the dispatch goroutine.
	target  *bluetooth.DeviceData
	waiting bool
}

// New returns a new session which delegates to the provided transport.
// The session registers its adapter and device state receivers, and starts
// dispatching messages immediately. Initialize must be called before any
// connection-related operation.
func New(transport bluetooth.Transport, opts ...Option) (*Session, error) {
	if transport == nil {
		return nil, invalidArgument("session-new", "Transport cannot be nil")
	}

	s := &Session{
		transport: transport,
		notifier:  bluetooth.NopNotifier{},
		cfg:       config.New(),
		done:      make(chan struct{}),
		ready:     make(chan struct{}),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	if s.logger == nil {
		s.logger = s.cfg.Logger()
	}

	charset, err := htmlindex.Get(s.cfg.Charset)
	if err != nil {
		return nil, fault.Wrap(err,
			fctx.With(context.Background(), "error_at", "session-charset", "charset", s.cfg.Charset),
			ftag.With(ftag.InvalidArgument),
			fmsg.With("Unknown charset"),
		)
	}
	s.charset = charset

	s.adapterReceiver.group = bluetooth.AdapterStateEvents()
	s.deviceReceiver.group = bluetooth.DeviceStateEvents()
	s.errorReceiver.group = bluetooth.ErrorEvents()

	s.mailbox = make(chan mail, s.cfg.MailboxSize)
	s.ctx, s.cancel = context.WithCancel(context.Background())
	go s.dispatch()

	transport.Bind(s)
	s.adapterReceiver.register(s.postAdapterState)
	s.deviceReceiver.register(s.postDeviceState)
	s.errorReceiver.register(s.postError)

	return s, nil
}

// SetListener sets the listener for this session.
// A nil listener silently drops all notifications.
func (s *Session) SetListener(listener bluetooth.Listener) {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()

	s.listener = listener
}

// Initialized returns whether the session has been initialized.
func (s *Session) Initialized() bool {
	return s.initialized.Load()
}

// Ready returns a channel that is closed once the session is initialized.
// If the adapter is disabled afterwards, a new channel is returned until
// the session is initialized again.
func (s *Session) Ready() <-chan struct{} {
	s.readyMu.Lock()
	defer s.readyMu.Unlock()

	return s.ready
}

// Initialize checks whether the adapter is enabled. If it is, the session is
// marked as initialized before returning. Otherwise, an enable request is issued,
// and the session is initialized once the adapter-enabled notification arrives.
func (s *Session) Initialize() error {
	if s.closed.Load() {
		return sessionClosed("session-initialize")
	}

	return s.initialize()
}

// ConnectToDevice starts a serial connection to the device with the provided address.
func (s *Session) ConnectToDevice(address string) error {
	mac, err := s.checkAddress("connect-device", address)
	if err != nil {
		return err
	}

	return s.transport.Connect(mac)
}

// ConnectToDeviceData starts a serial connection to the provided device.
func (s *Session) ConnectToDeviceData(device bluetooth.DeviceData) error {
	if err := s.checkInitialized("connect-device-data"); err != nil {
		return err
	}

	return s.transport.Connect(device.Address)
}

// CreateServer creates a server on this device that waits for a client to connect.
func (s *Session) CreateServer() error {
	if err := s.checkInitialized("create-server"); err != nil {
		return err
	}

	return s.transport.CreateServerSocket()
}

// ConnectToServer connects to a server created on the device with the provided address.
func (s *Session) ConnectToServer(address string) error {
	mac, err := s.checkAddress("connect-server", address)
	if err != nil {
		return err
	}

	return s.transport.ConnectToServer(mac)
}

// ConnectToProfileDevice connects to the device with the provided name using the
// configured profile. The device is recorded as the target of the profile proxy,
// which the transport delivers asynchronously.
func (s *Session) ConnectToProfileDevice(name string) error {
	if err := s.checkInitialized("connect-profile-device"); err != nil {
		return err
	}

	var target *bluetooth.DeviceData

	device, ok := s.transport.FindDeviceByName(name)
	if ok {
		target = &device
	} else {
		s.logger.WithField("name", name).Warn("No known device matches the profile device name")
	}

	s.post(mail{kind: mailTarget, target: target})

	return s.transport.SetupProfileConnection()
}

// MakeDiscoverable makes the adapter discoverable for the provided duration.
// A zero or negative duration uses the configured default.
func (s *Session) MakeDiscoverable(duration time.Duration) error {
	if err := s.checkInitialized("make-discoverable"); err != nil {
		return err
	}

	if duration <= 0 {
		duration = s.cfg.DiscoverableDuration
	}

	return s.transport.EnableDiscoverability(duration)
}

// Scan starts discovering devices, and returns the devices currently known to the adapter.
// The start and end of discovery are reported through the listener.
func (s *Session) Scan() ([]bluetooth.DeviceData, error) {
	if err := s.checkInitialized("scan"); err != nil {
		return nil, err
	}

	if err := s.transport.StartDiscovery(); err != nil {
		return nil, err
	}

	return s.transport.Devices()
}

// SendData sends text to the connected device, encoded with the configured charset.
func (s *Session) SendData(data string) error {
	if err := s.checkInitialized("send-data"); err != nil {
		return err
	}

	payload, err := s.charset.NewEncoder().Bytes([]byte(data))
	if err != nil {
		return fault.Wrap(err,
			fctx.With(context.Background(), "error_at", "send-data-encode", "charset", s.cfg.Charset),
			ftag.With(ftag.InvalidArgument),
			fmsg.With("Data cannot be encoded with the configured charset"),
		)
	}

	return s.transport.SendBytes(payload)
}

// SendInt sends a single byte, the low eight bits of data, to the connected device.
func (s *Session) SendInt(data int) error {
	if err := s.checkInitialized("send-int"); err != nil {
		return err
	}

	return s.transport.SendBytes([]byte{byte(data)})
}

// Teardown unregisters the state receivers, closes all transport connections
// and stops dispatching messages. Subsequent calls do nothing.
func (s *Session) Teardown() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	s.adapterReceiver.safeUnregister()
	s.deviceReceiver.safeUnregister()
	s.errorReceiver.safeUnregister()

	err := s.transport.CloseAll()
	s.setInitialized(false)
	s.cancel()

	return err
}

// Done returns a channel that is closed once the dispatch goroutine has exited.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// initialize checks the adapter state, and marks the session as initialized or
// requests the adapter to be enabled.
func (s *Session) initialize() error {
	attempt := s.attempts.Inc()

	enabled, err := s.transport.CheckEnabled()
	if err != nil {
		return err
	}

	if !enabled {
		s.logger.WithField("attempt", attempt).Debug("Adapter is disabled, requesting to enable it")
		return s.transport.RequestEnable()
	}

	if s.setInitialized(true) {
		s.logger.WithField("attempt", attempt).Debug("Session initialized")
		s.notifier.Notify("Bluetooth initialized")
	}

	return nil
}

// setInitialized sets the initialization flag, and reports whether it changed.
// The ready channel is closed when the flag is set, and replaced when it is cleared.
func (s *Session) setInitialized(initialized bool) bool {
	s.readyMu.Lock()
	defer s.readyMu.Unlock()

	if !s.initialized.CompareAndSwap(!initialized, initialized) {
		return false
	}

	if initialized {
		close(s.ready)
	} else {
		s.ready = make(chan struct{})
	}

	return true
}

// checkInitialized returns an error if the session is not initialized.
func (s *Session) checkInitialized(at string) error {
	if s.closed.Load() {
		return sessionClosed(at)
	}

	if !s.initialized.Load() {
		return fault.Wrap(errorkinds.ErrIllegalSessionState,
			fctx.With(context.Background(), "error_at", at),
			ftag.With(KindIllegalState),
			fmsg.With("Must initialize before using any other method of Session! Call Initialize()"),
		)
	}

	return nil
}

// checkAddress checks if the session is initialized, and parses the provided address.
func (s *Session) checkAddress(at, address string) (bluetooth.MacAddress, error) {
	if err := s.checkInitialized(at); err != nil {
		return bluetooth.MacAddress{}, err
	}

	mac, err := bluetooth.ParseMAC(address)
	if err != nil {
		return mac, fault.Wrap(err,
			fctx.With(context.Background(), "error_at", at, "address", address),
			ftag.With(ftag.InvalidArgument),
			fmsg.With("Invalid device address"),
		)
	}

	return mac, nil
}

// currentListener returns the registered listener.
func (s *Session) currentListener() bluetooth.Listener {
	s.listenerMu.RLock()
	defer s.listenerMu.RUnlock()

	return s.listener
}

func sessionClosed(at string) error {
	return fault.Wrap(errorkinds.ErrSessionNotExist,
		fctx.With(context.Background(), "error_at", at),
		ftag.With(ftag.NotFound),
		fmsg.With("The session has been torn down"),
	)
}
