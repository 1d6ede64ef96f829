package session

import (
	"context"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fctx"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/bluetuith-org/simple-bluetooth/api/bluetooth"
	"github.com/bluetuith-org/simple-bluetooth/api/errorkinds"
	"github.com/sirupsen/logrus"
)

// mailKind identifies the kind of an item in the session mailbox.
type mailKind byte

const (
	mailMessage mailKind = iota
	mailTarget
	mailAdapterState
	mailDeviceState
	mailError
)

// mail is an item in the session mailbox.
type mail struct {
	kind mailKind

	message bluetooth.Message
	target  *bluetooth.DeviceData
	adapter bluetooth.AdapterStateEvent
	device  bluetooth.DeviceStateEvent
	err     error
}

// Post enqueues a transport message. Messages are dispatched one at a time,
// in the order they were posted. Messages posted after Teardown are dropped.
func (s *Session) Post(msg bluetooth.Message) {
	s.post(mail{kind: mailMessage, message: msg})
}

func (s *Session) postAdapterState(ev bluetooth.AdapterStateEvent) {
	s.post(mail{kind: mailAdapterState, adapter: ev})
}

func (s *Session) postDeviceState(ev bluetooth.DeviceStateEvent) {
	s.post(mail{kind: mailDeviceState, device: ev})
}

func (s *Session) postError(ev errorkinds.GenericError) {
	s.post(mail{kind: mailError, err: ev.Errors})
}

func (s *Session) post(m mail) {
	select {
	case <-s.ctx.Done():
		return

	default:
	}

	select {
	case s.mailbox <- m:
	case <-s.ctx.Done():
	}
}

// dispatch drains the mailbox until the session is torn down.
func (s *Session) dispatch() {
	defer close(s.done)

	for {
		select {
		case <-s.ctx.Done():
			return

		case m := <-s.mailbox:
			s.handleMail(m)
		}
	}
}

func (s *Session) handleMail(m mail) {
	switch m.kind {
	case mailMessage:
		s.logger.WithFields(logrus.Fields{
			"tag":  m.message.Tag.String(),
			"size": len(m.message.Payload),
		}).Debug("Dispatching transport message")

		if s.handler != nil {
			s.handler.HandleMessage(m.message)
			return
		}

		s.handleMessage(m.message)

	case mailTarget:
		s.target = m.target

	case mailAdapterState:
		s.handleAdapterState(m.adapter)

	case mailDeviceState:
		s.handleDeviceState(m.device)

	case mailError:
		if m.err != nil {
			s.reportError(m.err)
		}
	}
}

// handleMessage is the default dispatch table for transport messages.
func (s *Session) handleMessage(msg bluetooth.Message) {
	switch msg.Tag {
	case bluetooth.MessageDataRead:
		if len(msg.Payload) == 0 {
			return
		}

		if listener := s.currentListener(); listener != nil {
			listener.OnDataReceived(msg.Payload, s.decode(msg.Payload))
		}

	case bluetooth.MessageAwaitingConnection:
		s.waiting = true
		s.notifier.ShowProgress("", "Waiting...")

	case bluetooth.MessageConnectionMade:
		if !s.waiting {
			return
		}

		s.waiting = false
		s.notifier.DismissProgress()
		s.notifier.Notify("Device connected!")

	case bluetooth.MessageProfileProxyReady:
		if s.target == nil {
			s.logger.Warn("Profile proxy received without a target device")
			s.reportError(fault.Wrap(errorkinds.ErrDeviceNotFound,
				fctx.With(context.Background(), "error_at", "profile-proxy-target"),
				ftag.With(ftag.NotFound),
				fmsg.With("No target device was recorded for the profile connection"),
			))

			return
		}

		if err := s.transport.ConnectProfileProxy(msg.Proxy, *s.target); err != nil {
			s.logger.WithError(err).WithField("address", s.target.Address.String()).
				Error("Profile connection failed")
			s.reportError(err)
		}
	}
}

// handleAdapterState re-initializes the session when the adapter state changes.
// A disabled adapter clears the initialization flag first.
func (s *Session) handleAdapterState(ev bluetooth.AdapterStateEvent) {
	if !ev.Enabled {
		s.setInitialized(false)
		s.logger.WithField("address", ev.Address.String()).Info("Adapter was disabled")

		if !s.cfg.ReenableOnDisable {
			return
		}
	}

	if err := s.initialize(); err != nil {
		s.logger.WithError(err).Error("Cannot re-initialize session")
		s.reportError(err)
	}
}

// handleDeviceState forwards device state changes to the listener.
func (s *Session) handleDeviceState(ev bluetooth.DeviceStateEvent) {
	listener := s.currentListener()
	if listener == nil {
		return
	}

	switch ev.Action {
	case bluetooth.DeviceConnected:
		listener.OnDeviceConnected(ev.Device)

	case bluetooth.DeviceDisconnected:
		listener.OnDeviceDisconnected(ev.Device)

	case bluetooth.DiscoveryStarted:
		listener.OnDiscoveryStarted()

	case bluetooth.DiscoveryFinished:
		listener.OnDiscoveryFinished()
	}
}

// reportError delivers an error to the listener, if it accepts errors.
// Errors raised while dispatching and errors published on the error
// event stream by the transport both end up here.
func (s *Session) reportError(err error) {
	if listener, ok := s.currentListener().(bluetooth.ErrorListener); ok {
		listener.OnError(err)
	}
}

// decode returns the text form of a payload.
func (s *Session) decode(payload []byte) string {
	text, err := s.charset.NewDecoder().Bytes(payload)
	if err != nil {
		return string(payload)
	}

	return string(text)
}
