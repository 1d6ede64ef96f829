package config

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/knadh/koanf/parsers/hjson"
	"github.com/knadh/koanf/providers/cliflagv2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"golang.org/x/text/encoding/htmlindex"
)

const (
	// DefaultDiscoverableDuration is the default duration the adapter stays discoverable.
	DefaultDiscoverableDuration = 120 * time.Second

	// MaxDiscoverableDuration is the longest duration the adapter may be made discoverable for.
	MaxDiscoverableDuration = 3600 * time.Second

	// DefaultMailboxSize is the default number of messages a session can queue.
	DefaultMailboxSize = 16

	// DefaultRFCOMMChannel is the default RFCOMM channel for serial connections.
	DefaultRFCOMMChannel = 1

	// DefaultCharset is the default charset used to encode and decode text payloads.
	DefaultCharset = "utf-8"

	// DefaultLogLevel is the default logging level.
	DefaultLogLevel = "info"
)

// Configuration describes a general configuration.
type Configuration struct {
	// Adapter holds the name (hci0) or address of the adapter to use.
	// The first adapter is used if it is empty.
	Adapter string `koanf:"adapter"`

	// DiscoverableDuration holds the duration used when no duration is provided
	// to make the adapter discoverable.
	DiscoverableDuration time.Duration `koanf:"discoverable-duration"`

	// MailboxSize holds the number of messages a session can queue
	// before transport workers block.
	MailboxSize int `koanf:"mailbox-size"`

	// ReenableOnDisable indicates whether a session requests the adapter
	// to be enabled again once it is disabled.
	ReenableOnDisable bool `koanf:"reenable-on-disable"`

	// Charset holds the name of the charset used for text payloads.
	Charset string `koanf:"charset"`

	// RFCOMMChannel holds the RFCOMM channel for serial connections.
	RFCOMMChannel uint8 `koanf:"rfcomm-channel"`

	// ProfileUUID holds the profile used for profile connections.
	ProfileUUID uuid.UUID `koanf:"-"`

	// LogLevel holds the logging level.
	LogLevel string `koanf:"log-level"`
}

// New returns a new configuration with default values.
func New() Configuration {
	return Configuration{
		DiscoverableDuration: DefaultDiscoverableDuration,
		MailboxSize:          DefaultMailboxSize,
		ReenableOnDisable:    true,
		Charset:              DefaultCharset,
		RFCOMMChannel:        DefaultRFCOMMChannel,
		ProfileUUID:          uuid.MustParse("0000110b-0000-1000-8000-00805f9b34fb"),
		LogLevel:             DefaultLogLevel,
	}
}

// Load merges the configuration file at path (if provided) and the command-line
// flags into the configuration. Values that are not set keep their current value.
func (c *Configuration) Load(k *koanf.Koanf, path string, cliCtx *cli.Context) error {
	if path != "" {
		if err := k.Load(file.Provider(path), hjson.Parser()); err != nil {
			return fmt.Errorf("cannot load configuration file %q: %w", path, err)
		}
	}

	if cliCtx != nil {
		if err := k.Load(cliflagv2.Provider(cliCtx, "."), nil); err != nil {
			return err
		}
	}

	if err := k.UnmarshalWithConf("", c, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return err
	}

	if raw := k.String("profile-uuid"); raw != "" {
		profile, err := uuid.Parse(raw)
		if err != nil {
			return fmt.Errorf("invalid profile UUID %q: %w", raw, err)
		}

		c.ProfileUUID = profile
	}

	return nil
}

// Validate validates the configuration values.
func (c *Configuration) Validate() error {
	for _, validate := range []func() error{
		c.validateDuration,
		c.validateMailbox,
		c.validateCharset,
		c.validateChannel,
		c.validateLogLevel,
	} {
		if err := validate(); err != nil {
			return err
		}
	}

	return nil
}

// Logger returns a logger set to the configured level.
func (c *Configuration) Logger() *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	return logger
}

func (c *Configuration) validateDuration() error {
	if c.DiscoverableDuration <= 0 || c.DiscoverableDuration > MaxDiscoverableDuration {
		return fmt.Errorf("discoverable duration %s is out of range (0s, %s]", c.DiscoverableDuration, MaxDiscoverableDuration)
	}

	return nil
}

func (c *Configuration) validateMailbox() error {
	if c.MailboxSize <= 0 {
		return fmt.Errorf("mailbox size must be positive, got %d", c.MailboxSize)
	}

	return nil
}

func (c *Configuration) validateCharset() error {
	if _, err := htmlindex.Get(c.Charset); err != nil {
		return fmt.Errorf("unknown charset %q: %w", c.Charset, err)
	}

	return nil
}

func (c *Configuration) validateChannel() error {
	if c.RFCOMMChannel < 1 || c.RFCOMMChannel > 30 {
		return fmt.Errorf("RFCOMM channel %d is out of range [1, 30]", c.RFCOMMChannel)
	}

	return nil
}

func (c *Configuration) validateLogLevel() error {
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return err
	}

	return nil
}
