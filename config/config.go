// Package config loads service configuration from an optional file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Strategy profiles.
const (
	ProfileFull  = "full"
	ProfileBasic = "basic"
)

// Network delivery modes.
const (
	NetworkModeHTTP = "http"
	NetworkModeRaw  = "raw"
)

var profiles = map[string][]string{
	ProfileFull:  {"usb", "bridge", "network", "serial", "browser"},
	ProfileBasic: {"network", "serial", "browser"},
}

type Config struct {
	Store    Store    `mapstructure:"store"`
	Log      Log      `mapstructure:"log"`
	HTTP     HTTP     `mapstructure:"http"`
	Relay    Relay    `mapstructure:"relay"`
	Database Database `mapstructure:"database"`
	Printer  Printer  `mapstructure:"printer"`
}

type Store struct {
	Name     string `mapstructure:"name"`
	Currency string `mapstructure:"currency"`
}

type Log struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

type HTTP struct {
	Address string `mapstructure:"address"`
}

type Relay struct {
	Address string `mapstructure:"address"`
}

type Database struct {
	URL string `mapstructure:"url"`
}

type Printer struct {
	Profile    string   `mapstructure:"profile"`
	Strategies []string `mapstructure:"strategies"`
	USB        USB      `mapstructure:"usb"`
	Bridge     Bridge   `mapstructure:"bridge"`
	Network    Network  `mapstructure:"network"`
	Serial     Serial   `mapstructure:"serial"`
	Browser    Browser  `mapstructure:"browser"`
}

type USB struct {
	// VendorIDs are hex ("0x04b8") or decimal USB vendor ids.
	VendorIDs []string `mapstructure:"vendor_ids"`
	// MatchPrinterClass also selects devices of unlisted vendors that
	// declare the USB printer class, office printers included.
	MatchPrinterClass bool `mapstructure:"match_printer_class"`
}

type Bridge struct {
	Hooks []Hook `mapstructure:"hooks"`
}

// Hook is a host print command that reads the payload on stdin.
type Hook struct {
	Name    string   `mapstructure:"name"`
	Command []string `mapstructure:"command"`
}

type Network struct {
	Candidates []string      `mapstructure:"candidates"`
	Port       int           `mapstructure:"port"`
	Mode       string        `mapstructure:"mode"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type Serial struct {
	Port       string        `mapstructure:"port"`
	BaudRates  []int         `mapstructure:"baud_rates"`
	ChunkSize  int           `mapstructure:"chunk_size"`
	ChunkDelay time.Duration `mapstructure:"chunk_delay"`
}

type Browser struct {
	Dir string `mapstructure:"dir"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.name", "")
	v.SetDefault("store.currency", "₹")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)

	v.SetDefault("http.address", "localhost:8080")
	v.SetDefault("relay.address", "localhost:9100")
	v.SetDefault("database.url", "")

	v.SetDefault("printer.profile", ProfileFull)
	v.SetDefault("printer.strategies", []string{})
	v.SetDefault("printer.usb.vendor_ids", []string{
		"0x04b8", // Epson
		"0x0519", // Star Micronics
		"0x1d90", // Citizen
		"0x1504", // Bixolon
		"0x0dd4", // Custom
		"0x0416", // Winbond based generic POS
		"0x0fe6", // ICS generic POS
		"0x28e9", // GD32 based generic POS
	})
	v.SetDefault("printer.bridge.hooks", []map[string]any{
		{"name": "cups", "command": []string{"lp", "-o", "raw"}},
		{"name": "lpr", "command": []string{"lpr", "-l"}},
	})
	v.SetDefault("printer.network.candidates", []string{
		"192.168.1.100",
		"192.168.1.101",
		"192.168.0.100",
		"192.168.0.101",
		"192.168.1.200",
	})
	v.SetDefault("printer.usb.match_printer_class", false)
	v.SetDefault("printer.network.port", 9100)
	v.SetDefault("printer.network.mode", "")
	v.SetDefault("printer.network.timeout", 3*time.Second)
	v.SetDefault("printer.serial.port", "")
	v.SetDefault("printer.serial.baud_rates", []int{9600, 19200, 38400, 115200})
	v.SetDefault("printer.serial.chunk_size", 256)
	v.SetDefault("printer.serial.chunk_delay", 50*time.Millisecond)
	v.SetDefault("printer.browser.dir", "")
}

// Load reads configuration. path may be empty, in which case only defaults
// and environment variables apply. Environment variables use the key path in
// upper case with dots replaced by underscores (PRINTER_SERIAL_PORT).
// SERVER_ADDRESS is still honoured for the relay listen address.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("relay.address", "RELAY_ADDRESS", "SERVER_ADDRESS"); err != nil {
		return nil, fmt.Errorf("bind relay address: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail at print time.
func (c *Config) Validate() error {
	var errs []error

	if _, ok := profiles[c.Printer.Profile]; !ok {
		errs = append(errs, fmt.Errorf("printer.profile: unknown profile %q", c.Printer.Profile))
	}
	switch c.Printer.Network.Mode {
	case "", NetworkModeHTTP, NetworkModeRaw:
	default:
		errs = append(errs, fmt.Errorf("printer.network.mode: unknown mode %q", c.Printer.Network.Mode))
	}
	if c.Printer.Network.Port <= 0 || c.Printer.Network.Port > 65535 {
		errs = append(errs, fmt.Errorf("printer.network.port: %d out of range", c.Printer.Network.Port))
	}
	if c.Printer.Serial.ChunkSize <= 0 {
		errs = append(errs, errors.New("printer.serial.chunk_size must be positive"))
	}
	if len(c.Printer.Serial.BaudRates) == 0 {
		errs = append(errs, errors.New("printer.serial.baud_rates must not be empty"))
	}
	if _, err := c.Printer.USB.Vendors(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// EnabledStrategies returns the configured strategy names, falling back to
// the profile's set.
func (p Printer) EnabledStrategies() []string {
	if len(p.Strategies) > 0 {
		return p.Strategies
	}
	return profiles[p.Profile]
}

// NetworkMode resolves an empty mode from the profile: the basic profile
// writes raw sockets, the full profile posts over HTTP.
func (p Printer) NetworkMode() string {
	if p.Network.Mode != "" {
		return p.Network.Mode
	}
	if p.Profile == ProfileBasic {
		return NetworkModeRaw
	}
	return NetworkModeHTTP
}

// Vendors parses the vendor id allow-list.
func (u USB) Vendors() ([]uint16, error) {
	ids := make([]uint16, 0, len(u.VendorIDs))
	for _, s := range u.VendorIDs {
		id, err := strconv.ParseUint(strings.TrimSpace(s), 0, 16)
		if err != nil {
			return nil, fmt.Errorf("printer.usb.vendor_ids: invalid id %q: %w", s, err)
		}
		ids = append(ids, uint16(id))
	}
	return ids, nil
}
