package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the agent configuration.
type Config struct {
	Serial   SerialConfig   `yaml:"serial"`
	Sampling SamplingConfig `yaml:"sampling"`
	Feed     FeedConfig     `yaml:"feed"`
	HTTP     HTTPConfig     `yaml:"http"`
	Mock     MockConfig     `yaml:"mock"`
}

// SerialConfig contains serial port configuration. Port "mock" selects the
// simulated gauge.
type SerialConfig struct {
	Port string `yaml:"port"`
	Baud int    `yaml:"baud"`
}

// SamplingConfig contains acquisition loop parameters.
type SamplingConfig struct {
	FrequencyHz float64 `yaml:"frequency_hz"`
	TestMode    bool    `yaml:"test_mode"` // run exactly one iteration, then exit
}

// FeedConfig contains downstream feed configuration. The InfluxDB token is
// not stored here; it comes from the INFLUXDB_TOKEN environment variable.
// An empty URL disables the InfluxDB sink and samples are logged instead.
type FeedConfig struct {
	InfluxURL     string        `yaml:"influx_url"`
	InfluxOrg     string        `yaml:"influx_org"`
	InfluxBucket  string        `yaml:"influx_bucket"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// HTTPConfig contains the control/status API listen address.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// MockConfig contains simulated gauge configuration.
type MockConfig struct {
	BasePressure float64 `yaml:"base_pressure"` // mbar
	Noise        float64 `yaml:"noise"`         // noise amplitude (mbar)
}

// Default returns a default configuration with sensible values.
func Default() *Config {
	return &Config{
		Serial: SerialConfig{
			Port: "/dev/ttyUSB0",
			Baud: 19200,
		},
		Sampling: SamplingConfig{
			FrequencyHz: 2.5,
			TestMode:    false,
		},
		Feed: FeedConfig{
			InfluxBucket:  "pressure",
			FlushInterval: 60 * time.Second,
		},
		HTTP: HTTPConfig{
			Addr: ":8742",
		},
		Mock: MockConfig{
			BasePressure: 1013.25,
			Noise:        0.5,
		},
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values.
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

	// Ensure minimum required fields are set (use defaults if missing)
	cfg.ensureDefaults()

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

// ensureDefaults ensures that all required fields have default values if missing.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Serial.Port == "" {
		c.Serial.Port = def.Serial.Port
	}
	if c.Serial.Baud == 0 {
		c.Serial.Baud = def.Serial.Baud
	}

	if c.Sampling.FrequencyHz == 0 {
		c.Sampling.FrequencyHz = def.Sampling.FrequencyHz
	}

	if c.Feed.InfluxBucket == "" {
		c.Feed.InfluxBucket = def.Feed.InfluxBucket
	}
	if c.Feed.FlushInterval == 0 {
		c.Feed.FlushInterval = def.Feed.FlushInterval
	}

	if c.HTTP.Addr == "" {
		c.HTTP.Addr = def.HTTP.Addr
	}

	if c.Mock.BasePressure == 0 {
		c.Mock.BasePressure = def.Mock.BasePressure
	}
	if c.Mock.Noise == 0 {
		c.Mock.Noise = def.Mock.Noise
	}
}
