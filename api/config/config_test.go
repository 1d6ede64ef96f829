package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/knadh/koanf/v2"
)

func TestNewIsValid(t *testing.T) {
	cfg := New()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default configuration is invalid: %v", err)
	}

	if !cfg.ReenableOnDisable {
		t.Fatal("re-enabling on disable must be the default")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Configuration)
	}{
		{"zero duration", func(c *Configuration) { c.DiscoverableDuration = 0 }},
		{"long duration", func(c *Configuration) { c.DiscoverableDuration = 2 * time.Hour }},
		{"empty mailbox", func(c *Configuration) { c.MailboxSize = 0 }},
		{"unknown charset", func(c *Configuration) { c.Charset = "no-such-charset" }},
		{"channel zero", func(c *Configuration) { c.RFCOMMChannel = 0 }},
		{"channel too large", func(c *Configuration) { c.RFCOMMChannel = 31 }},
		{"bad log level", func(c *Configuration) { c.LogLevel = "loud" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := New()
			tt.modify(&cfg)

			if err := cfg.Validate(); err == nil {
				t.Fatal("expected a validation error")
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "simplebt.conf")
	contents := `{
	adapter: hci1
	mailbox-size: 32
	charset: iso-8859-1
	reenable-on-disable: false
	profile-uuid: 00001101-0000-1000-8000-00805f9b34fb
}`
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := New()
	if err := cfg.Load(koanf.New("."), path, nil); err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Adapter != "hci1" || cfg.MailboxSize != 32 || cfg.Charset != "iso-8859-1" {
		t.Fatalf("unexpected values: %+v", cfg)
	}
	if cfg.ReenableOnDisable {
		t.Fatal("expected reenable-on-disable to be overridden")
	}
	if cfg.ProfileUUID.String() != "00001101-0000-1000-8000-00805f9b34fb" {
		t.Fatalf("unexpected profile UUID %s", cfg.ProfileUUID)
	}
	if cfg.DiscoverableDuration != DefaultDiscoverableDuration {
		t.Fatal("unset values must keep their defaults")
	}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("loaded configuration is invalid: %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	cfg := New()
	if err := cfg.Load(koanf.New("."), filepath.Join(t.TempDir(), "missing.conf"), nil); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestLogger(t *testing.T) {
	cfg := New()
	cfg.LogLevel = "debug"

	if got := cfg.Logger().GetLevel().String(); got != "debug" {
		t.Fatalf("logger level = %s", got)
	}
}
