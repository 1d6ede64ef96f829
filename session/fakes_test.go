package session

import (
	"sync"
	"testing"
	"time"

	"github.com/bluetuith-org/simple-bluetooth/api/bluetooth"
	"github.com/google/uuid"
)

type fakeProxy struct{}

func (fakeProxy) Profile() uuid.UUID { return bluetooth.AudioSinkUUID }

type fakeTransport struct {
	mu sync.Mutex

	enabled     bool
	checkErr    error
	connectErr  error
	proxyErr    error
	closeErr    error
	postProxy   bool
	devices     []bluetooth.DeviceData
	calls       map[string]int
	connected   []bluetooth.MacAddress
	sent        [][]byte
	proxyCalls  []bluetooth.DeviceData
	discoverFor time.Duration

	sink bluetooth.MessageSink
}

func newFakeTransport(enabled bool) *fakeTransport {
	return &fakeTransport{enabled: enabled, calls: make(map[string]int)}
}

func (f *fakeTransport) record(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls[name]++
}

func (f *fakeTransport) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.calls[name]
}

func (f *fakeTransport) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	total := 0
	for name, n := range f.calls {
		if name == "Bind" {
			continue
		}
		total += n
	}

	return total
}

func (f *fakeTransport) setEnabled(enabled bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.enabled = enabled
}

func (f *fakeTransport) Bind(sink bluetooth.MessageSink) {
	f.record("Bind")

	f.mu.Lock()
	defer f.mu.Unlock()

	f.sink = sink
}

func (f *fakeTransport) CheckEnabled() (bool, error) {
	f.record("CheckEnabled")

	f.mu.Lock()
	defer f.mu.Unlock()

	return f.enabled, f.checkErr
}

func (f *fakeTransport) RequestEnable() error {
	f.record("RequestEnable")
	return nil
}

func (f *fakeTransport) Connect(address bluetooth.MacAddress) error {
	f.record("Connect")

	f.mu.Lock()
	defer f.mu.Unlock()

	f.connected = append(f.connected, address)

	return f.connectErr
}

func (f *fakeTransport) CreateServerSocket() error {
	f.record("CreateServerSocket")
	return nil
}

func (f *fakeTransport) ConnectToServer(address bluetooth.MacAddress) error {
	f.record("ConnectToServer")

	f.mu.Lock()
	defer f.mu.Unlock()

	f.connected = append(f.connected, address)

	return f.connectErr
}

func (f *fakeTransport) FindDeviceByName(name string) (bluetooth.DeviceData, bool) {
	f.record("FindDeviceByName")

	f.mu.Lock()
	defer f.mu.Unlock()

	for _, device := range f.devices {
		if device.MatchName(name) {
			return device, true
		}
	}

	return bluetooth.DeviceData{}, false
}

func (f *fakeTransport) SetupProfileConnection() error {
	f.record("SetupProfileConnection")

	f.mu.Lock()
	sink, postProxy := f.sink, f.postProxy
	f.mu.Unlock()

	if postProxy {
		sink.Post(bluetooth.Message{Tag: bluetooth.MessageProfileProxyReady, Proxy: fakeProxy{}})
	}

	return nil
}

func (f *fakeTransport) ConnectProfileProxy(_ bluetooth.ProfileProxy, device bluetooth.DeviceData) error {
	f.record("ConnectProfileProxy")

	f.mu.Lock()
	defer f.mu.Unlock()

	f.proxyCalls = append(f.proxyCalls, device)

	return f.proxyErr
}

func (f *fakeTransport) SendBytes(payload []byte) error {
	f.record("SendBytes")

	f.mu.Lock()
	defer f.mu.Unlock()

	f.sent = append(f.sent, payload)

	return nil
}

func (f *fakeTransport) CloseAll() error {
	f.record("CloseAll")
	return f.closeErr
}

func (f *fakeTransport) EnableDiscoverability(duration time.Duration) error {
	f.record("EnableDiscoverability")

	f.mu.Lock()
	defer f.mu.Unlock()

	f.discoverFor = duration

	return nil
}

func (f *fakeTransport) StartDiscovery() error {
	f.record("StartDiscovery")
	return nil
}

func (f *fakeTransport) Devices() ([]bluetooth.DeviceData, error) {
	f.record("Devices")

	f.mu.Lock()
	defer f.mu.Unlock()

	return f.devices, nil
}

type received struct {
	data []byte
	text string
}

// syncPayload is posted after the messages under test. Once the listener
// receives it, every message posted before it has been dispatched.
const syncPayload = "\x00sync"

type recordingListener struct {
	mu sync.Mutex

	data   []received
	events []string
	errors []error

	synced chan struct{}
	called chan string
}

func newRecordingListener() *recordingListener {
	return &recordingListener{
		synced: make(chan struct{}, 16),
		called: make(chan string, 16),
	}
}

func (l *recordingListener) OnDataReceived(data []byte, text string) {
	if text == syncPayload {
		l.synced <- struct{}{}
		return
	}

	l.mu.Lock()
	l.data = append(l.data, received{data, text})
	l.mu.Unlock()

	l.signal("data")
}

func (l *recordingListener) signal(name string) {
	select {
	case l.called <- name:
	default:
	}
}

func (l *recordingListener) event(name string) {
	l.mu.Lock()
	l.events = append(l.events, name)
	l.mu.Unlock()

	l.signal(name)
}

func (l *recordingListener) OnDeviceConnected(d bluetooth.DeviceData) {
	l.event("connected:" + d.Name)
}

func (l *recordingListener) OnDeviceDisconnected(d bluetooth.DeviceData) {
	l.event("disconnected:" + d.Name)
}

func (l *recordingListener) OnDiscoveryStarted()  { l.event("discovery-started") }
func (l *recordingListener) OnDiscoveryFinished() { l.event("discovery-finished") }

func (l *recordingListener) OnError(err error) {
	l.mu.Lock()
	l.errors = append(l.errors, err)
	l.mu.Unlock()
}

func (l *recordingListener) received() []received {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]received(nil), l.data...)
}

func (l *recordingListener) errs() []error {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]error(nil), l.errors...)
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls []string
}

func (n *recordingNotifier) add(call string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.calls = append(n.calls, call)
}

func (n *recordingNotifier) ShowProgress(_, message string) { n.add("show:" + message) }
func (n *recordingNotifier) DismissProgress()               { n.add("dismiss") }
func (n *recordingNotifier) Notify(message string)          { n.add("notify:" + message) }

func (n *recordingNotifier) snapshot() []string {
	n.mu.Lock()
	defer n.mu.Unlock()

	return append([]string(nil), n.calls...)
}

func (n *recordingNotifier) countOf(call string) int {
	count := 0
	for _, c := range n.snapshot() {
		if c == call {
			count++
		}
	}

	return count
}

// flush waits until every message posted to the session so far has been dispatched.
func flush(t *testing.T, s *Session, l *recordingListener) {
	t.Helper()

	s.Post(bluetooth.Message{Tag: bluetooth.MessageDataRead, Payload: []byte(syncPayload)})

	select {
	case <-l.synced:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the session to dispatch messages")
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}

		time.Sleep(5 * time.Millisecond)
	}
}

func newTestSession(t *testing.T, transport *fakeTransport, opts ...Option) (*Session, *recordingListener) {
	t.Helper()

	listener := newRecordingListener()

	s, err := New(transport, append([]Option{WithListener(listener)}, opts...)...)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	t.Cleanup(func() { _ = s.Teardown() })

	return s, listener
}
