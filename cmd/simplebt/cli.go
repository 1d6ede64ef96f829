package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/bluetuith-org/simple-bluetooth/api/config"
	"github.com/bluetuith-org/simple-bluetooth/api/errorkinds"
	"github.com/bluetuith-org/simple-bluetooth/internal/serde"
	"github.com/bluetuith-org/simple-bluetooth/platform"
	"github.com/bluetuith-org/simple-bluetooth/session"
	"github.com/knadh/koanf/v2"
	"github.com/urfave/cli/v2"
)

// These values are set at compile-time.
var (
	Version  = ""
	Revision = ""
)

// initializeTimeout is how long to wait for the adapter to be enabled.
const initializeTimeout = 10 * time.Second

// newApp returns a new commandline application.
func newApp() *cli.App {
	cli.VersionPrinter = func(cCtx *cli.Context) {
		fmt.Fprintf(cCtx.App.Writer, "%s (%s)\n", Version, Revision)
	}

	return &cli.App{
		Name:                   "simplebt",
		Usage:                  "Simple Bluetooth serial and profile connections.",
		Version:                Version + " (" + Revision + ")",
		Description:            "Connect to Bluetooth devices, exchange data over RFCOMM and connect audio profiles.",
		Copyright:              "(c) bluetuith-org.",
		Compiled:               time.Now(),
		EnableBashCompletion:   true,
		UseShortOptionHandling: true,
		Suggest:                true,
		Flags:                  globalFlags(),
		Commands: []*cli.Command{
			{
				Name:   "scan",
				Usage:  "Discover nearby devices and list known devices.",
				Flags:  []cli.Flag{&cli.DurationFlag{Name: "wait", Aliases: []string{"w"}, Value: 5 * time.Second, Usage: "Time to discover devices for."}},
				Action: scanAction,
			},
			{
				Name:      "connect",
				Usage:     "Connect to a device and exchange data.",
				ArgsUsage: "<address>",
				Action: withSession(func(cliCtx *cli.Context, s *session.Session) error {
					return s.ConnectToDevice(cliCtx.Args().First())
				}),
			},
			{
				Name:      "connect-server",
				Usage:     "Connect to a server created on another device and exchange data.",
				ArgsUsage: "<address>",
				Action: withSession(func(cliCtx *cli.Context, s *session.Session) error {
					return s.ConnectToServer(cliCtx.Args().First())
				}),
			},
			{
				Name:  "serve",
				Usage: "Wait for a device to connect and exchange data.",
				Action: withSession(func(_ *cli.Context, s *session.Session) error {
					return s.CreateServer()
				}),
			},
			{
				Name:      "profile",
				Usage:     "Connect the configured profile of a device.",
				ArgsUsage: "<name>",
				Action: withSession(func(cliCtx *cli.Context, s *session.Session) error {
					return s.ConnectToProfileDevice(cliCtx.Args().First())
				}),
			},
			{
				Name:  "discoverable",
				Usage: "Make the adapter discoverable.",
				Flags: []cli.Flag{&cli.DurationFlag{Name: "for", Aliases: []string{"f"}, Usage: "Time to stay discoverable for."}},
				Action: func(cliCtx *cli.Context) error {
					return run(cliCtx, func(s *session.Session) error {
						return s.MakeDiscoverable(cliCtx.Duration("for"))
					}, false)
				},
			},
		},
		ExitErrHandler: func(_ *cli.Context, err error) {
			if err == nil {
				return
			}

			printError(err)
		},
	}
}

// globalFlags returns the flags that are merged into the configuration.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			EnvVars: []string{"SIMPLEBT_CONFIG"},
			Usage:   "Specify a configuration file (hjson).",
		},
		&cli.StringFlag{
			Name:    "adapter",
			Aliases: []string{"a"},
			EnvVars: []string{"SIMPLEBT_ADAPTER"},
			Usage:   "Specify an adapter to use. (For example, hci0)",
		},
		&cli.DurationFlag{
			Name:  "discoverable-duration",
			Value: config.DefaultDiscoverableDuration,
			Usage: "Default time the adapter stays discoverable.",
		},
		&cli.IntFlag{
			Name:  "mailbox-size",
			Value: config.DefaultMailboxSize,
			Usage: "Number of messages a session can queue.",
		},
		&cli.BoolFlag{
			Name:  "reenable-on-disable",
			Value: true,
			Usage: "Enable the adapter again when it is disabled.",
		},
		&cli.StringFlag{
			Name:  "charset",
			Value: config.DefaultCharset,
			Usage: "Charset of text data. (For example, utf-8 or windows-1252)",
		},
		&cli.UintFlag{
			Name:    "rfcomm-channel",
			Aliases: []string{"r"},
			Value:   config.DefaultRFCOMMChannel,
			Usage:   "RFCOMM channel for serial connections.",
		},
		&cli.StringFlag{
			Name:  "profile-uuid",
			Usage: "Profile to connect with the profile command. (Default is the A2DP sink)",
		},
		&cli.StringFlag{
			Name:    "log-level",
			Aliases: []string{"l"},
			EnvVars: []string{"SIMPLEBT_LOG_LEVEL"},
			Value:   config.DefaultLogLevel,
			Usage:   "Logging level. (For example, debug)",
		},
		&cli.BoolFlag{
			Name:    "json",
			Aliases: []string{"j"},
			Usage:   "Print events and data as JSON.",
		},
	}
}

// loadConfig merges the configuration file and the global flags into a configuration.
func loadConfig(cliCtx *cli.Context) (config.Configuration, error) {
	root := cliCtx.Lineage()[len(cliCtx.Lineage())-1]

	// required for koanf to merge all global flags under the root namespace.
	root.Command.Name = "global"

	k, cfg := koanf.New("."), config.New()
	if err := cfg.Load(k, root.String("config"), root); err != nil {
		return cfg, err
	}

	return cfg, cfg.Validate()
}

// withSession returns an action that starts a connection with the session,
// then sends every line read from the standard input until interrupted.
func withSession(start func(*cli.Context, *session.Session) error) cli.ActionFunc {
	return func(cliCtx *cli.Context) error {
		return run(cliCtx, func(s *session.Session) error {
			return start(cliCtx, s)
		}, true)
	}
}

// run sets up a session, initializes it and calls action.
// If interactive is set, standard input is sent to the connected device.
func run(cliCtx *cli.Context, action func(*session.Session) error, interactive bool) error {
	cfg, err := loadConfig(cliCtx)
	if err != nil {
		return err
	}

	logger := cfg.Logger()

	transport, info, err := platform.NewTransport(cfg, logger)
	if err != nil {
		return err
	}
	defer transport.Close()

	logger.WithField("stack", info.Stack.String()).WithField("os", info.OS).Debug("Transport started")

	listener := &printListener{json: cliCtx.Bool("json"), out: cliCtx.App.Writer}
	s, err := session.New(transport,
		session.WithConfig(cfg),
		session.WithLogger(logger),
		session.WithNotifier(newSpinnerNotifier(cliCtx.App.ErrWriter)),
		session.WithListener(listener),
	)
	if err != nil {
		return err
	}
	defer s.Teardown()

	ctx, cancel := signal.NotifyContext(cliCtx.Context, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := initialize(ctx, s); err != nil {
		return err
	}

	if err := action(s); err != nil {
		return err
	}

	if !interactive {
		return nil
	}

	return sendLines(ctx, s, os.Stdin)
}

// initialize initializes the session, and waits for the adapter to
// be enabled if it was not.
func initialize(ctx context.Context, s *session.Session) error {
	if err := s.Initialize(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, initializeTimeout)
	defer cancel()

	select {
	case <-s.Ready():
		return nil

	case <-s.Done():
		return fmt.Errorf("the session was closed: %w", errorkinds.ErrSessionNotExist)

	case <-ctx.Done():
		return fmt.Errorf("the adapter was not enabled: %w", errorkinds.ErrIllegalSessionState)
	}
}

// sendLines sends each line read from r until r is closed or ctx is done.
func sendLines(ctx context.Context, s *session.Session, r io.Reader) error {
	lines := make(chan string)
	go func() {
		defer close(lines)

		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case line, ok := <-lines:
			if !ok {
				<-ctx.Done()

				return nil
			}

			if err := s.SendData(line + "\n"); err != nil {
				if errors.Is(err, errorkinds.ErrNotConnected) {
					printWarn("No device is connected yet")

					continue
				}

				return err
			}
		}
	}
}

// scanAction discovers devices for a while and prints the known devices.
func scanAction(cliCtx *cli.Context) error {
	return run(cliCtx, func(s *session.Session) error {
		if _, err := s.Scan(); err != nil {
			return err
		}

		select {
		case <-time.After(cliCtx.Duration("wait")):
		case <-cliCtx.Context.Done():
		}

		devices, err := s.Scan()
		if err != nil {
			return err
		}

		if cliCtx.Bool("json") {
			data, err := serde.MarshalJson(devices)
			if err != nil {
				return err
			}

			fmt.Fprintln(cliCtx.App.Writer, string(data))

			return nil
		}

		var sb strings.Builder

		sb.WriteString("List of devices:")
		for _, device := range devices {
			sb.WriteString("\n- ")
			sb.WriteString(device.Address.String())
			sb.WriteString(" ")
			sb.WriteString(device.DisplayName())
			if device.Paired {
				sb.WriteString(" (paired)")
			}
		}

		fmt.Fprintln(cliCtx.App.Writer, sb.String())

		return nil
	}, false)
}
