// Command glade drives a trigger output on a schedule, from a button, or
// on request over HTTP, and reports activations to MQTT.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	_ "go.uber.org/automaxprocs"
	"golang.org/x/sync/errgroup"

	"github.com/sweeney/glade/internal/clock"
	"github.com/sweeney/glade/internal/config"
	"github.com/sweeney/glade/internal/device"
	"github.com/sweeney/glade/internal/eeprom"
	"github.com/sweeney/glade/internal/gpio"
	"github.com/sweeney/glade/internal/metrics"
	"github.com/sweeney/glade/internal/mqtt"
	"github.com/sweeney/glade/internal/settings"
	"github.com/sweeney/glade/internal/status"
	"github.com/sweeney/glade/internal/web"
)

var version = "dev"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := config.NewOptions()
	var configFile string

	cmd := &cobra.Command{
		Use:           "glade",
		Short:         "Scheduled trigger daemon",
		Long:          "glade pulses a GPIO trigger line on a weekly schedule, on a button press, or on an HTTP request, and publishes each activation to MQTT.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.Load(viper.New(), cmd.Flags(), configFile); err != nil {
				return err
			}
			if err := opts.Validate(); err != nil {
				return err
			}
			return setupLogging(opts.Log, os.Stderr)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancelCause(context.Background())
			defer cancel(nil)
			stop := watchSignals(cancel)
			defer stop()

			if err := run(ctx, opts); err != nil {
				log.Error().Err(err).Msg("fatal")
				return err
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "YAML config file.")
	opts.AddFlags(cmd.PersistentFlags())
	cmd.AddCommand(newSettingsCommand(opts))

	return cmd
}

// watchSignals cancels ctx with a device.SignalError on SIGINT or SIGTERM.
func watchSignals(cancel context.CancelCauseFunc) (stop func()) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		select {
		case s := <-sigCh:
			log.Info().Str("signal", s.String()).Msg("shutting down")
			cancel(device.SignalError{Signal: s})
		case <-done:
		}
	}()

	return func() {
		signal.Stop(sigCh)
		close(done)
	}
}

func run(ctx context.Context, opts *config.Options) error {
	loc, err := opts.Location()
	if err != nil {
		return err
	}
	clk := clock.NewWall(loc)
	hostname := resolveHostname(opts.Hostname)

	medium, err := eeprom.OpenFile(afero.NewOsFs(), opts.EEPROM.Path, opts.EEPROM.Size)
	if err != nil {
		return fmt.Errorf("open settings image: %w", err)
	}
	store := settings.NewStore(medium)
	sch, defaulted, err := store.LoadOrDefault()
	if err != nil {
		log.Warn().Err(err).Msg("settings not persisted, running on defaults")
	}
	log.Info().
		Bool("defaulted", defaulted).
		Bool("active", sch.Active).
		Uint16("interval", sch.Interval).
		Msg("settings loaded")

	pins, err := gpio.NewRealPins(opts.GPIO.Chip, opts.GPIO.PinTrigger, opts.GPIO.PinButton)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer func() {
		if err := pins.Close(); err != nil {
			log.Warn().Err(err).Msg("release gpio")
		}
	}()
	var button gpio.Button
	if opts.ButtonEnabled() {
		button = pins
	}

	publisher, err := newPublisher(opts.MQTT, hostname)
	if err != nil {
		return err
	}
	defer publisher.Close()

	tracker := status.NewTracker(clk.Now(), status.Config{
		Hostname:         hostname,
		Version:          version,
		Broker:           opts.MQTT.Broker,
		TopicRoot:        opts.MQTT.TopicRoot,
		HTTPAddr:         opts.HTTP.Addr,
		Timezone:         loc.String(),
		HeartbeatMs:      opts.Heartbeat.Milliseconds(),
		ButtonPollMs:     opts.Button.Poll.Milliseconds(),
		ButtonDebounceMs: opts.Button.Debounce.Milliseconds(),
	})
	tracker.SetClock(clk.Now)
	if info := readNetworkInfo(); info != nil {
		tracker.SetNetwork(info)
	}

	m := metrics.New()

	loop, err := device.New(device.Config{
		Clock:          clk,
		Output:         pins,
		Store:          store,
		Schedule:       sch,
		HistorySize:    opts.HistorySize,
		Button:         button,
		ButtonPoll:     opts.Button.Poll,
		ButtonDebounce: opts.Button.Debounce,
		Publisher:      publisher,
		Tracker:        tracker,
		Metrics:        m,
		Heartbeat:      opts.Heartbeat,
		Network:        readNetworkInfo,
	})
	if err != nil {
		return err
	}

	log.Info().
		Str("version", version).
		Str("hostname", hostname).
		Str("timezone", loc.String()).
		Str("broker", opts.MQTT.Broker).
		Str("http", opts.HTTP.Addr).
		Msg("started")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return loop.Run(gctx)
	})
	if opts.HTTP.Addr != "" {
		srv := web.New(opts.HTTP.Addr, loop, tracker, m.Handler())
		g.Go(func() error {
			return srv.Run(gctx)
		})
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func newPublisher(o config.MQTTOptions, hostname string) (mqtt.Publisher, error) {
	if o.Broker == "" {
		log.Info().Msg("mqtt disabled")
		return mqtt.Discard{}, nil
	}

	clientID := o.ClientID
	if clientID == "" {
		clientID = "glade-" + hostname
	}

	pub, err := mqtt.NewRealPublisher(mqtt.Options{
		Broker:    o.Broker,
		ClientID:  clientID,
		TopicRoot: o.TopicRoot,
	})
	if err != nil {
		return nil, fmt.Errorf("init mqtt: %w", err)
	}
	return pub, nil
}

func resolveHostname(override string) string {
	if override != "" {
		return override
	}
	h, err := os.Hostname()
	if err != nil {
		return "glade"
	}
	return h
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
