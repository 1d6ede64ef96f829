package session

import (
	"context"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fctx"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/bluetuith-org/simple-bluetooth/api/bluetooth"
	"github.com/bluetuith-org/simple-bluetooth/api/config"
	"github.com/bluetuith-org/simple-bluetooth/api/errorkinds"
	"github.com/sirupsen/logrus"
)

// Option configures a Session.
type Option func(s *Session) error

// Handler describes a custom handler for transport messages.
// It replaces the default dispatch of a session, and is called
// from the session's dispatch goroutine.
type Handler interface {
	HandleMessage(msg bluetooth.Message)
}

// HandlerFunc is an adapter to allow ordinary functions to be used as a Handler.
type HandlerFunc func(msg bluetooth.Message)

// HandleMessage calls f(msg).
func (f HandlerFunc) HandleMessage(msg bluetooth.Message) {
	f(msg)
}

// WithHandler sets a custom handler for transport messages.
func WithHandler(handler Handler) Option {
	return func(s *Session) error {
		if handler == nil {
			return invalidArgument("option-handler", "Custom message handler cannot be nil")
		}

		s.handler = handler

		return nil
	}
}

// WithNotifier sets the notifier used to display progress and short messages.
func WithNotifier(notifier bluetooth.Notifier) Option {
	return func(s *Session) error {
		if notifier == nil {
			return invalidArgument("option-notifier", "Notifier cannot be nil")
		}

		s.notifier = notifier

		return nil
	}
}

// WithLogger sets the session logger.
func WithLogger(logger *logrus.Logger) Option {
	return func(s *Session) error {
		if logger == nil {
			return invalidArgument("option-logger", "Logger cannot be nil")
		}

		s.logger = logger

		return nil
	}
}

// WithConfig sets the session configuration.
func WithConfig(cfg config.Configuration) Option {
	return func(s *Session) error {
		if err := cfg.Validate(); err != nil {
			return fault.Wrap(err,
				fctx.With(context.Background(), "error_at", "option-config"),
				ftag.With(ftag.InvalidArgument),
				fmsg.With("Invalid session configuration"),
			)
		}

		s.cfg = cfg

		return nil
	}
}

// WithListener sets the listener at construction time.
func WithListener(listener bluetooth.Listener) Option {
	return func(s *Session) error {
		s.listener = listener

		return nil
	}
}

func invalidArgument(at, message string) error {
	return fault.Wrap(errorkinds.ErrInvalidArgument,
		fctx.With(context.Background(), "error_at", at),
		ftag.With(ftag.InvalidArgument),
		fmsg.With(message),
	)
}
