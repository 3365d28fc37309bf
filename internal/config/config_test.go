package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

func newFlagSet(o *Options) *pflag.FlagSet {
	fs := pflag.NewFlagSet("glade", pflag.ContinueOnError)
	o.AddFlags(fs)
	return fs
}

func TestDefaultsAreValid(t *testing.T) {
	if err := NewOptions().Validate(); err != nil {
		t.Errorf("defaults invalid: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Options)
		wantErr string
	}{
		{"bad http addr", func(o *Options) { o.HTTP.Addr = "80" }, "http.addr"},
		{"http disabled", func(o *Options) { o.HTTP.Addr = "" }, ""},
		{"bad broker scheme", func(o *Options) { o.MQTT.Broker = "http://broker:1883" }, "mqtt.broker"},
		{"broker without host", func(o *Options) { o.MQTT.Broker = "tcp://" }, "mqtt.broker"},
		{"broker disabled", func(o *Options) { o.MQTT.Broker = "" }, ""},
		{"websocket broker", func(o *Options) { o.MQTT.Broker = "ws://broker:9001/mqtt" }, ""},
		{"empty topic root", func(o *Options) { o.MQTT.TopicRoot = " " }, "mqtt.topic-root"},
		{"wildcard topic root", func(o *Options) { o.MQTT.TopicRoot = "glade/#" }, "wildcards"},
		{"negative trigger pin", func(o *Options) { o.GPIO.PinTrigger = -1 }, "gpio.pin-trigger"},
		{"button on trigger pin", func(o *Options) { o.GPIO.PinButton = o.GPIO.PinTrigger }, "gpio.pin-button"},
		{"button disabled", func(o *Options) { o.GPIO.PinButton = -1 }, ""},
		{"zero poll", func(o *Options) { o.Button.Poll = 0 }, "button.poll"},
		{"negative debounce", func(o *Options) { o.Button.Debounce = -time.Millisecond }, "button.debounce"},
		{"tiny eeprom", func(o *Options) { o.EEPROM.Size = 8 }, "eeprom.size"},
		{"empty eeprom path", func(o *Options) { o.EEPROM.Path = "" }, "eeprom.path"},
		{"bad log level", func(o *Options) { o.Log.Level = "loud" }, "log.level"},
		{"bad log format", func(o *Options) { o.Log.Format = "xml" }, "log.format"},
		{"bad timezone", func(o *Options) { o.Timezone = "Mars/Olympus" }, "timezone"},
		{"history too small", func(o *Options) { o.HistorySize = 0 }, "history-size"},
		{"history too large", func(o *Options) { o.HistorySize = 256 }, "history-size"},
		{"negative heartbeat", func(o *Options) { o.Heartbeat = -time.Second }, "heartbeat"},
		{"heartbeat disabled", func(o *Options) { o.Heartbeat = 0 }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := NewOptions()
			tt.mutate(o)
			err := o.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("got %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	o := NewOptions()
	o.HistorySize = 0
	o.Log.Format = "xml"

	err := o.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"history-size", "log.format"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error missing %q: %v", want, err)
		}
	}
}

func TestLocation(t *testing.T) {
	o := NewOptions()
	loc, err := o.Location()
	if err != nil || loc != time.Local {
		t.Errorf("empty timezone: got %v, %v", loc, err)
	}

	o.Timezone = "Europe/London"
	loc, err = o.Location()
	if err != nil {
		t.Fatalf("Location: %v", err)
	}
	if loc.String() != "Europe/London" {
		t.Errorf("got %s", loc)
	}
}

func TestLoadFlags(t *testing.T) {
	o := NewOptions()
	fs := newFlagSet(o)
	if err := fs.Parse([]string{"--mqtt.broker=tcp://10.0.0.2:1883", "--history-size=20", "--button.poll=5ms"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if err := o.Load(viper.New(), fs, ""); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if o.MQTT.Broker != "tcp://10.0.0.2:1883" {
		t.Errorf("broker: got %q", o.MQTT.Broker)
	}
	if o.HistorySize != 20 {
		t.Errorf("history size: got %d", o.HistorySize)
	}
	if o.Button.Poll != 5*time.Millisecond {
		t.Errorf("poll: got %v", o.Button.Poll)
	}
	if o.HTTP.Addr != ":80" {
		t.Errorf("default http addr lost: %q", o.HTTP.Addr)
	}
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("GLADE_MQTT_TOPIC_ROOT", "house/porch")
	t.Setenv("GLADE_HEARTBEAT", "1m")

	o := NewOptions()
	fs := newFlagSet(o)
	fs.Parse(nil)

	if err := o.Load(viper.New(), fs, ""); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if o.MQTT.TopicRoot != "house/porch" {
		t.Errorf("topic root: got %q", o.MQTT.TopicRoot)
	}
	if o.Heartbeat != time.Minute {
		t.Errorf("heartbeat: got %v", o.Heartbeat)
	}
}

func TestLoadFileWithPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "glade.yaml")
	data := `
http:
  addr: ":8080"
mqtt:
  broker: ""
gpio:
  pin-button: -1
timezone: Europe/London
history-size: 5
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("GLADE_HISTORY_SIZE", "7")

	o := NewOptions()
	fs := newFlagSet(o)
	if err := fs.Parse([]string{"--http.addr=:9090"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if err := o.Load(viper.New(), fs, path); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if o.HTTP.Addr != ":9090" {
		t.Errorf("flag should beat file: got %q", o.HTTP.Addr)
	}
	if o.HistorySize != 7 {
		t.Errorf("env should beat file: got %d", o.HistorySize)
	}
	if o.Timezone != "Europe/London" {
		t.Errorf("timezone from file: got %q", o.Timezone)
	}
	if o.MQTT.Broker != "" {
		t.Errorf("broker from file: got %q", o.MQTT.Broker)
	}
	if o.ButtonEnabled() {
		t.Error("button should be disabled by file")
	}
	if err := o.Validate(); err != nil {
		t.Errorf("loaded options invalid: %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	o := NewOptions()
	fs := newFlagSet(o)
	fs.Parse(nil)

	err := o.Load(viper.New(), fs, filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Error("expected error for missing config file")
	}
}
