// Package config defines the daemon options and loads them from flags,
// environment variables and an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sweeney/glade/internal/eeprom"
	"github.com/sweeney/glade/internal/gpio"
	"github.com/sweeney/glade/internal/mqtt"
	"github.com/sweeney/glade/internal/settings"
)

// EnvPrefix is prepended to environment variable names, e.g.
// GLADE_MQTT_BROKER for mqtt.broker.
const EnvPrefix = "GLADE"

// Log formats.
const (
	FormatAuto    = "auto"
	FormatConsole = "console"
	FormatJSON    = "json"
)

// HTTPOptions configures the control server.
type HTTPOptions struct {
	// Addr is the listen address; empty disables the server.
	Addr string `json:"addr" mapstructure:"addr"`
}

// MQTTOptions configures the broker connection.
type MQTTOptions struct {
	// Broker is the broker URL; empty disables publishing.
	Broker    string `json:"broker" mapstructure:"broker"`
	ClientID  string `json:"client-id" mapstructure:"client-id"`
	TopicRoot string `json:"topic-root" mapstructure:"topic-root"`
}

// GPIOOptions selects the chip and lines.
type GPIOOptions struct {
	Chip       string `json:"chip" mapstructure:"chip"`
	PinTrigger int    `json:"pin-trigger" mapstructure:"pin-trigger"`
	// PinButton is the button line; negative disables the button.
	PinButton int `json:"pin-button" mapstructure:"pin-button"`
}

// ButtonOptions tunes button sampling.
type ButtonOptions struct {
	Poll     time.Duration `json:"poll" mapstructure:"poll"`
	Debounce time.Duration `json:"debounce" mapstructure:"debounce"`
}

// EEPROMOptions locates the settings image.
type EEPROMOptions struct {
	Path string `json:"path" mapstructure:"path"`
	Size int    `json:"size" mapstructure:"size"`
}

// LogOptions configures the global logger.
type LogOptions struct {
	Level  string `json:"level" mapstructure:"level"`
	Format string `json:"format" mapstructure:"format"`
}

// Options is the complete daemon configuration.
type Options struct {
	HTTP   HTTPOptions   `json:"http" mapstructure:"http"`
	MQTT   MQTTOptions   `json:"mqtt" mapstructure:"mqtt"`
	GPIO   GPIOOptions   `json:"gpio" mapstructure:"gpio"`
	Button ButtonOptions `json:"button" mapstructure:"button"`
	EEPROM EEPROMOptions `json:"eeprom" mapstructure:"eeprom"`
	Log    LogOptions    `json:"log" mapstructure:"log"`

	// Timezone is an IANA name; empty means the system zone.
	Timezone    string        `json:"timezone" mapstructure:"timezone"`
	HistorySize int           `json:"history-size" mapstructure:"history-size"`
	Heartbeat   time.Duration `json:"heartbeat" mapstructure:"heartbeat"`
	// Hostname overrides os.Hostname in status output and the client ID.
	Hostname string `json:"hostname" mapstructure:"hostname"`
}

// NewOptions returns Options with default values.
func NewOptions() *Options {
	return &Options{
		HTTP: HTTPOptions{Addr: ":80"},
		MQTT: MQTTOptions{
			Broker:    "tcp://localhost:1883",
			TopicRoot: mqtt.DefaultTopicRoot,
		},
		GPIO: GPIOOptions{
			Chip:       gpio.DefaultChip,
			PinTrigger: gpio.DefaultPinTrigger,
			PinButton:  gpio.DefaultPinButton,
		},
		Button: ButtonOptions{
			Poll:     20 * time.Millisecond,
			Debounce: 50 * time.Millisecond,
		},
		EEPROM: EEPROMOptions{
			Path: "/var/lib/glade/eeprom.bin",
			Size: eeprom.DefaultSize,
		},
		Log: LogOptions{
			Level:  zerolog.LevelInfoValue,
			Format: FormatAuto,
		},
		HistorySize: 10,
		Heartbeat:   15 * time.Minute,
	}
}

// AddFlags adds flags for Options to fs.
func (o *Options) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.HTTP.Addr, "http.addr", o.HTTP.Addr, "HTTP control server address (empty to disable).")

	fs.StringVar(&o.MQTT.Broker, "mqtt.broker", o.MQTT.Broker, "MQTT broker URL (empty to disable).")
	fs.StringVar(&o.MQTT.ClientID, "mqtt.client-id", o.MQTT.ClientID, "MQTT client ID (default glade-<hostname>).")
	fs.StringVar(&o.MQTT.TopicRoot, "mqtt.topic-root", o.MQTT.TopicRoot, "Topic prefix for events and system messages.")

	fs.StringVar(&o.GPIO.Chip, "gpio.chip", o.GPIO.Chip, "GPIO character device.")
	fs.IntVar(&o.GPIO.PinTrigger, "gpio.pin-trigger", o.GPIO.PinTrigger, "BCM line driving the trigger output.")
	fs.IntVar(&o.GPIO.PinButton, "gpio.pin-button", o.GPIO.PinButton, "BCM line of the manual button (negative to disable).")

	fs.DurationVar(&o.Button.Poll, "button.poll", o.Button.Poll, "Button polling interval.")
	fs.DurationVar(&o.Button.Debounce, "button.debounce", o.Button.Debounce, "Button debounce duration.")

	fs.StringVar(&o.EEPROM.Path, "eeprom.path", o.EEPROM.Path, "File holding the settings image.")
	fs.IntVar(&o.EEPROM.Size, "eeprom.size", o.EEPROM.Size, "Settings image size in bytes.")

	fs.StringVar(&o.Log.Level, "log.level", o.Log.Level, "Log level (trace, debug, info, warn, error).")
	fs.StringVar(&o.Log.Format, "log.format", o.Log.Format, "Log format (auto, console, json).")

	fs.StringVar(&o.Timezone, "timezone", o.Timezone, "IANA time zone for schedule evaluation (empty for system zone).")
	fs.IntVar(&o.HistorySize, "history-size", o.HistorySize, "Number of activations kept in the trigger log.")
	fs.DurationVar(&o.Heartbeat, "heartbeat", o.Heartbeat, "Heartbeat interval (0 to disable).")
	fs.StringVar(&o.Hostname, "hostname", o.Hostname, "Hostname reported in status output.")
}

// Validate checks the options and returns every problem found.
func (o *Options) Validate() error {
	var errs []error

	if o.HTTP.Addr != "" {
		if _, _, err := net.SplitHostPort(o.HTTP.Addr); err != nil {
			errs = append(errs, fmt.Errorf("http.addr: %w", err))
		}
	}

	if o.MQTT.Broker != "" {
		if err := validateBroker(o.MQTT.Broker); err != nil {
			errs = append(errs, fmt.Errorf("mqtt.broker: %w", err))
		}
	}
	if strings.TrimSpace(o.MQTT.TopicRoot) == "" {
		errs = append(errs, errors.New("mqtt.topic-root: must not be empty"))
	}
	if strings.ContainsAny(o.MQTT.TopicRoot, "#+") {
		errs = append(errs, errors.New("mqtt.topic-root: must not contain wildcards"))
	}

	if o.GPIO.Chip == "" {
		errs = append(errs, errors.New("gpio.chip: must not be empty"))
	}
	if o.GPIO.PinTrigger < 0 {
		errs = append(errs, fmt.Errorf("gpio.pin-trigger: %d is negative", o.GPIO.PinTrigger))
	}
	if o.GPIO.PinButton >= 0 && o.GPIO.PinButton == o.GPIO.PinTrigger {
		errs = append(errs, fmt.Errorf("gpio.pin-button: line %d is already the trigger", o.GPIO.PinButton))
	}

	if o.Button.Poll <= 0 {
		errs = append(errs, fmt.Errorf("button.poll: %v must be positive", o.Button.Poll))
	}
	if o.Button.Debounce < 0 {
		errs = append(errs, fmt.Errorf("button.debounce: %v is negative", o.Button.Debounce))
	}

	if o.EEPROM.Path == "" {
		errs = append(errs, errors.New("eeprom.path: must not be empty"))
	}
	if o.EEPROM.Size < settings.RecordSize {
		errs = append(errs, fmt.Errorf("eeprom.size: %d is smaller than a settings record (%d)", o.EEPROM.Size, settings.RecordSize))
	}

	if _, err := zerolog.ParseLevel(o.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	switch o.Log.Format {
	case FormatAuto, FormatConsole, FormatJSON:
	default:
		errs = append(errs, fmt.Errorf("log.format: unknown format %q", o.Log.Format))
	}

	if _, err := o.Location(); err != nil {
		errs = append(errs, fmt.Errorf("timezone: %w", err))
	}
	if o.HistorySize < 1 || o.HistorySize > 255 {
		errs = append(errs, fmt.Errorf("history-size: %d outside 1-255", o.HistorySize))
	}
	if o.Heartbeat < 0 {
		errs = append(errs, fmt.Errorf("heartbeat: %v is negative", o.Heartbeat))
	}

	return errors.Join(errs...)
}

func validateBroker(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	switch u.Scheme {
	case "tcp", "mqtt", "ssl", "tls", "mqtts", "ws", "wss":
	default:
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Hostname() == "" {
		return errors.New("missing host")
	}
	return nil
}

// Location returns the configured time zone.
func (o *Options) Location() (*time.Location, error) {
	if o.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(o.Timezone)
}

// ButtonEnabled reports whether a button line is configured.
func (o *Options) ButtonEnabled() bool {
	return o.GPIO.PinButton >= 0
}

// Load fills o from, in increasing priority, its current values, the
// config file (if path is set), GLADE_* environment variables, and flags
// set on fs.
func (o *Options) Load(v *viper.Viper, fs *pflag.FlagSet, path string) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(fs); err != nil {
		return fmt.Errorf("bind flags: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if err := v.Unmarshal(o); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	return nil
}
