// Package config loads the daemon configuration from a YAML file and the
// environment.
package config

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
	"github.com/simpleiot/n2kfast/client"
)

// Environment variables that override the config file
const (
	EnvNatsServer = "N2K_NATS_SERVER"
	EnvDataDir    = "N2K_DATA"
	EnvAuthToken  = "N2K_AUTH_TOKEN"
)

// DefaultNatsServer is used when no server is configured
const DefaultNatsServer = "nats://localhost:4222"

// Gps configures an NMEA 0183 receiver whose fixes are sent on a bus
type Gps struct {
	Port string `yaml:"port"`
	Baud int    `yaml:"baud"`
	Bus  string `yaml:"bus"`
}

// Config is the daemon configuration
type Config struct {
	NatsServer        string          `yaml:"natsServer"`
	NatsDisableServer bool            `yaml:"natsDisableServer"`
	NatsPort          int             `yaml:"natsPort"`
	AuthToken         string          `yaml:"authToken"`
	DataDir           string          `yaml:"dataDir"`
	FastPackets       []uint32        `yaml:"fastPackets"`
	Buses             []client.CanBus `yaml:"buses"`
	Gps               Gps             `yaml:"gps"`
}

// Parse decodes a YAML config. The result is not validated as command line
// options may still add buses, call Validate once the config is complete.
func Parse(d []byte) (Config, error) {
	var c Config
	err := yaml.Unmarshal(d, &c)
	if err != nil {
		return c, fmt.Errorf("Error parsing config: %w", err)
	}

	c.setDefaults()

	return c, nil
}

// Load reads a YAML config file. An empty path returns the defaults.
func Load(path string) (Config, error) {
	if path == "" {
		var c Config
		c.setDefaults()
		return c, nil
	}

	d, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("Error reading config: %w", err)
	}

	return Parse(d)
}

func (c *Config) setDefaults() {
	if c.NatsServer == "" {
		c.NatsServer = DefaultNatsServer
	}

	if c.NatsPort == 0 {
		c.NatsPort = 4222
	}

	if c.Gps.Baud == 0 {
		c.Gps.Baud = 4800
	}

	// global fast-packet PGNs apply to every bus
	for i := range c.Buses {
		c.Buses[i].FastPackets = append(c.Buses[i].FastPackets, c.FastPackets...)
	}

	c.DefaultGpsBus()
}

// DefaultGpsBus routes the GPS to the first bus when no bus is given
func (c *Config) DefaultGpsBus() {
	if c.Gps.Port != "" && c.Gps.Bus == "" && len(c.Buses) > 0 {
		c.Gps.Bus = c.Buses[0].BusName()
	}
}

// ApplyEnv overrides settings with environment variables that are set.
// getenv is usually os.Getenv.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv(EnvNatsServer); v != "" {
		c.NatsServer = v
	}

	if v := getenv(EnvDataDir); v != "" {
		c.DataDir = v
	}

	if v := getenv(EnvAuthToken); v != "" {
		c.AuthToken = v
	}
}

// Validate checks that bus names are unique and the GPS is routed to a
// configured bus
func (c Config) Validate() error {
	names := make(map[string]bool)

	for _, b := range c.Buses {
		if b.Device == "" {
			return fmt.Errorf("bus %q has no device", b.Name)
		}

		n := b.BusName()
		if names[n] {
			return fmt.Errorf("duplicate bus name: %v", n)
		}
		names[n] = true
	}

	if c.Gps.Port != "" && c.Gps.Bus == "" {
		return fmt.Errorf("gps needs a bus to send positions on")
	}

	if c.Gps.Port != "" && !names[c.Gps.Bus] {
		return fmt.Errorf("gps bus %q is not configured", c.Gps.Bus)
	}

	return nil
}
