//go:build linux

package linux

import (
	"context"
	"errors"
	"io"
	"os"
	"strconv"
	"sync"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fctx"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/bluetuith-org/simple-bluetooth/api/bluetooth"
	"github.com/bluetuith-org/simple-bluetooth/api/errorkinds"
	dbh "github.com/bluetuith-org/simple-bluetooth/linux/internal/dbushelper"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"
)

// readBufferSize is the size of the buffer each read from a connection is done into.
const readBufferSize = 1024

// rfcommConn describes an established RFCOMM connection.
type rfcommConn struct {
	id     uint64
	remote bluetooth.MacAddress
	file   *os.File
}

// rfcommServer describes a listening RFCOMM socket.
// The socket is only closed by the goroutine accepting on it,
// other goroutines shut it down to unblock the accept.
type rfcommServer struct {
	fd int

	mu       sync.Mutex
	released bool
}

// Connect starts a serial connection to a device.
func (t *BluezTransport) Connect(address bluetooth.MacAddress) error {
	go t.dial(address, "connect-device")

	return nil
}

// ConnectToServer starts a connection to a server created on another device.
func (t *BluezTransport) ConnectToServer(address bluetooth.MacAddress) error {
	go t.dial(address, "connect-server")

	return nil
}

// CreateServerSocket starts listening for a single incoming serial connection.
// A previously created server socket that is still waiting is closed.
func (t *BluezTransport) CreateServerSocket() error {
	fd, err := listenRFCOMM(t.adapterAddress, t.cfg.RFCOMMChannel)
	if err != nil {
		return fault.Wrap(err,
			fctx.With(context.Background(),
				"error_at", "rfcomm-listen",
				"channel", strconv.Itoa(int(t.cfg.RFCOMMChannel)),
			),
			ftag.With(ftag.Internal),
			fmsg.With("Cannot create the server socket"),
		)
	}

	server := &rfcommServer{fd: fd}
	if previous := t.server.Swap(server); previous != nil {
		_ = previous.shutdown()
	}

	t.logger.WithField("channel", t.cfg.RFCOMMChannel).Debug("Server socket listening")
	t.post(bluetooth.Message{Tag: bluetooth.MessageAwaitingConnection})

	go t.accept(server)

	return nil
}

// SendBytes writes the payload to the active connection.
func (t *BluezTransport) SendBytes(payload []byte) error {
	conn := t.active.Load()
	if conn == nil {
		return fault.Wrap(errorkinds.ErrNotConnected,
			fctx.With(context.Background(), "error_at", "rfcomm-send"),
			ftag.With(ftag.NotFound),
			fmsg.With("No device is connected"),
		)
	}

	if _, err := conn.file.Write(payload); err != nil {
		return fault.Wrap(err,
			fctx.With(context.Background(),
				"error_at", "rfcomm-send",
				"address", conn.remote.String(),
			),
			ftag.With(ftag.Internal),
			fmsg.With("An error occurred while sending data"),
		)
	}

	return nil
}

// CloseAll closes all connections and the listening server socket.
func (t *BluezTransport) CloseAll() error {
	var g errgroup.Group

	if server := t.server.Swap(nil); server != nil {
		g.Go(server.shutdown)
	}

	t.conns.Range(func(id uint64, conn *rfcommConn) bool {
		t.conns.Delete(id)
		g.Go(conn.file.Close)

		return true
	})
	t.active.Store(nil)

	if err := g.Wait(); err != nil && !errors.Is(err, os.ErrClosed) {
		return fault.Wrap(err,
			fctx.With(context.Background(), "error_at", "rfcomm-close-all"),
			ftag.With(ftag.Internal),
			fmsg.With("An error occurred while closing connections"),
		)
	}

	return nil
}

// dial connects to the remote device and starts reading from the connection.
func (t *BluezTransport) dial(address bluetooth.MacAddress, at string) {
	logger := t.logger.WithField("address", address.String())
	logger.Debug("Connecting")

	file, err := dialRFCOMM(address, t.cfg.RFCOMMChannel)
	if err != nil {
		logger.WithError(err).Debug("Connection failed")
		dbh.PublishError(err, "Cannot connect to the device",
			"error_at", "rfcomm-"+at, "address", address.String(),
		)

		return
	}

	t.serve(address, file)
}

// accept waits for a single incoming connection on the server socket.
func (t *BluezTransport) accept(server *rfcommServer) {
	nfd, sa, err := unix.Accept4(server.fd, unix.SOCK_CLOEXEC)
	t.server.CompareAndSwap(server, nil)
	server.release()

	if err != nil {
		if !isShutdownError(err) {
			dbh.PublishError(err, "Cannot accept a connection", "error_at", "rfcomm-accept")
		}

		t.logger.WithError(err).Debug("Server socket closed")

		return
	}

	var remote bluetooth.MacAddress
	if rc, ok := sa.(*unix.SockaddrRFCOMM); ok {
		remote = bluetooth.MacAddress(rc.Addr)
	}

	file, err := socketFile(nfd)
	if err != nil {
		_ = unix.Close(nfd)
		dbh.PublishError(err, "Cannot accept a connection", "error_at", "rfcomm-accept")

		return
	}

	t.serve(remote, file)
}

// serve registers the connection as the active one, reports it to the sink
// and reads from it until it is closed.
func (t *BluezTransport) serve(remote bluetooth.MacAddress, file *os.File) {
	conn := &rfcommConn{id: t.connID.Inc(), remote: remote, file: file}

	t.conns.Store(conn.id, conn)
	t.active.Store(conn)

	logger := t.logger.WithField("address", remote.String())
	logger.Debug("Connection established")

	t.post(bluetooth.Message{Tag: bluetooth.MessageConnectionMade})

	buf := make([]byte, readBufferSize)
	for {
		n, err := file.Read(buf)
		if n > 0 {
			payload := make([]byte, n)
			copy(payload, buf[:n])

			t.post(bluetooth.Message{Tag: bluetooth.MessageDataRead, Payload: payload})
		}

		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
				logger.WithError(err).Debug("Read failed")
			}

			break
		}
	}

	t.active.CompareAndSwap(conn, nil)
	if _, ok := t.conns.LoadAndDelete(conn.id); ok {
		_ = file.Close()
	}

	logger.Debug("Connection closed")
}

// shutdown shuts down the listening socket, which unblocks a pending accept.
func (s *rfcommServer) shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.released {
		return nil
	}

	if err := unix.Shutdown(s.fd, unix.SHUT_RDWR); err != nil && !errors.Is(err, unix.ENOTCONN) {
		return err
	}

	return nil
}

// release closes the listening socket.
func (s *rfcommServer) release() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.released {
		return
	}

	s.released = true
	_ = unix.Close(s.fd)
}

// isShutdownError reports whether an accept failed because the
// listening socket was shut down.
func isShutdownError(err error) bool {
	return errors.Is(err, unix.EINVAL) || errors.Is(err, unix.EBADFD) || errors.Is(err, unix.EBADF)
}

// dialRFCOMM opens an RFCOMM socket to the provided address and channel.
func dialRFCOMM(address bluetooth.MacAddress, channel uint8) (*os.File, error) {
	fd, err := unix.Socket(unix.AF_BLUETOOTH, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, unix.BTPROTO_RFCOMM)
	if err != nil {
		return nil, err
	}

	if err := unix.Connect(fd, &unix.SockaddrRFCOMM{Addr: [6]uint8(address), Channel: channel}); err != nil {
		_ = unix.Close(fd)

		return nil, err
	}

	file, err := socketFile(fd)
	if err != nil {
		_ = unix.Close(fd)

		return nil, err
	}

	return file, nil
}

// listenRFCOMM opens a listening RFCOMM socket bound to the provided adapter address and channel.
func listenRFCOMM(address bluetooth.MacAddress, channel uint8) (int, error) {
	fd, err := unix.Socket(unix.AF_BLUETOOTH, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, unix.BTPROTO_RFCOMM)
	if err != nil {
		return -1, err
	}

	if err := unix.Bind(fd, &unix.SockaddrRFCOMM{Addr: [6]uint8(address), Channel: channel}); err != nil {
		_ = unix.Close(fd)

		return -1, err
	}

	if err := unix.Listen(fd, 1); err != nil {
		_ = unix.Close(fd)

		return -1, err
	}

	return fd, nil
}

// socketFile wraps a connected socket in a file, which is polled by the runtime
// so that closing it unblocks pending reads.
func socketFile(fd int) (*os.File, error) {
	if err := unix.SetNonblock(fd, true); err != nil {
		return nil, err
	}

	return os.NewFile(uintptr(fd), "rfcomm"), nil
}
