// Package config loads the daemon configuration from YAML, falling
// back to defaults for anything missing.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/air-sensor/internal/gas"
)

// Config represents the daemon configuration.
type Config struct {
	Poll        PollConfig      `yaml:"poll"`
	MQTT        MQTTConfig      `yaml:"mqtt"`
	HTTP        HTTPConfig      `yaml:"http"`
	Store       StoreConfig     `yaml:"store"`
	ADC         ADCConfig       `yaml:"adc"`
	PM          PMConfig        `yaml:"pm"`
	Climate     ClimateConfig   `yaml:"climate"`
	Heater      HeaterConfig    `yaml:"heater"`
	ABC         ABCConfig       `yaml:"abc"`
	Calibration CalibConfig     `yaml:"calibration"`
	Channels    map[string]bool `yaml:"channels"`
}

// PollConfig contains loop timing.
type PollConfig struct {
	IntervalMs  int `yaml:"interval_ms"`
	HeartbeatMs int `yaml:"heartbeat_ms"` // 0 disables heartbeats
}

// MQTTConfig contains broker settings.
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	WSBroker string `yaml:"ws_broker"` // websocket URL for the status page (empty = no live updates)
}

// HTTPConfig contains status server settings.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// StoreConfig locates the calibration file.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// ADCConfig contains the gas-array serial bridge settings.
type ADCConfig struct {
	Port string `yaml:"port"`
	Baud int    `yaml:"baud"`
}

// PMConfig contains the particulate sensor serial settings.
type PMConfig struct {
	Port string `yaml:"port"`
}

// ClimateConfig contains the temperature/humidity sensor settings.
type ClimateConfig struct {
	I2CBus string `yaml:"i2c_bus"` // empty selects the first available bus
}

// HeaterConfig contains the MQ-7 duty-cycle settings.
type HeaterConfig struct {
	GPIOChip    string `yaml:"gpio_chip"`
	GPIOLine    int    `yaml:"gpio_line"`
	HeatMs      int    `yaml:"heat_ms"`
	SenseMs     int    `yaml:"sense_ms"`
	StabilizeMs int    `yaml:"stabilize_ms"`
}

// ABCConfig contains auto-baseline correction tuning.
type ABCConfig struct {
	WindowHours int     `yaml:"window_hours"`
	Blend       float64 `yaml:"blend"`
	NoiseFloor  float64 `yaml:"noise_floor"`
}

// CalibConfig shapes the manual calibration sampling window.
type CalibConfig struct {
	Samples int `yaml:"samples"`
	GapMs   int `yaml:"gap_ms"`
}

// Default returns a configuration with sensible values.
func Default() *Config {
	return &Config{
		Poll: PollConfig{
			IntervalMs:  5000,
			HeartbeatMs: 900000, // 15 minutes
		},
		MQTT: MQTTConfig{
			Broker:   "tcp://localhost:1883",
			ClientID: "air-sensor",
		},
		HTTP: HTTPConfig{
			Addr: ":8080",
		},
		Store: StoreConfig{
			Path: "/var/lib/air-sensor/calibration.yaml",
		},
		ADC: ADCConfig{
			Port: "/dev/ttyUSB0",
			Baud: 115200,
		},
		PM: PMConfig{
			Port: "/dev/ttyAMA0",
		},
		Heater: HeaterConfig{
			GPIOChip:    "gpiochip0",
			GPIOLine:    18,
			HeatMs:      60000,
			SenseMs:     90000,
			StabilizeMs: 30000,
		},
		ABC: ABCConfig{
			WindowHours: 24,
			Blend:       0.3,
			NoiseFloor:  0.05,
		},
		Calibration: CalibConfig{
			Samples: 100,
			GapMs:   10,
		},
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist
// or fields are missing, it uses default values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			// File doesn't exist, return defaults
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ensureDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// PollInterval returns the poll interval as a Duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Poll.IntervalMs) * time.Millisecond
}

// Heartbeat returns the heartbeat interval, or zero if disabled.
func (c *Config) Heartbeat() time.Duration {
	return time.Duration(c.Poll.HeartbeatMs) * time.Millisecond
}

// EnabledChannels converts the channels map to typed form. A nil
// return enables every channel.
func (c *Config) EnabledChannels() map[gas.Channel]bool {
	if len(c.Channels) == 0 {
		return nil
	}
	enabled := make(map[gas.Channel]bool, len(c.Channels))
	for name, on := range c.Channels {
		enabled[gas.Channel(name)] = on
	}
	return enabled
}

func (c *Config) validate() error {
	for name := range c.Channels {
		if !gas.Valid(gas.Channel(name)) {
			return fmt.Errorf("unknown channel %q in config", name)
		}
	}
	if c.Poll.IntervalMs <= 0 {
		return fmt.Errorf("poll interval must be positive, got %dms", c.Poll.IntervalMs)
	}
	return nil
}

// ensureDefaults ensures that all required fields have default values if missing.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Poll.IntervalMs == 0 {
		c.Poll.IntervalMs = def.Poll.IntervalMs
	}
	if c.MQTT.Broker == "" {
		c.MQTT.Broker = def.MQTT.Broker
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = def.MQTT.ClientID
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = def.HTTP.Addr
	}
	if c.Store.Path == "" {
		c.Store.Path = def.Store.Path
	}
	if c.ADC.Port == "" {
		c.ADC.Port = def.ADC.Port
	}
	if c.ADC.Baud == 0 {
		c.ADC.Baud = def.ADC.Baud
	}
	if c.PM.Port == "" {
		c.PM.Port = def.PM.Port
	}
	if c.Heater.GPIOChip == "" {
		c.Heater.GPIOChip = def.Heater.GPIOChip
	}
	if c.Heater.GPIOLine == 0 {
		c.Heater.GPIOLine = def.Heater.GPIOLine
	}
	if c.Heater.HeatMs == 0 {
		c.Heater.HeatMs = def.Heater.HeatMs
	}
	if c.Heater.SenseMs == 0 {
		c.Heater.SenseMs = def.Heater.SenseMs
	}
	if c.Heater.StabilizeMs == 0 {
		c.Heater.StabilizeMs = def.Heater.StabilizeMs
	}
	if c.ABC.WindowHours == 0 {
		c.ABC.WindowHours = def.ABC.WindowHours
	}
	if c.ABC.Blend == 0 {
		c.ABC.Blend = def.ABC.Blend
	}
	if c.ABC.NoiseFloor == 0 {
		c.ABC.NoiseFloor = def.ABC.NoiseFloor
	}
	if c.Calibration.Samples == 0 {
		c.Calibration.Samples = def.Calibration.Samples
	}
	if c.Calibration.GapMs == 0 {
		c.Calibration.GapMs = def.Calibration.GapMs
	}
}
