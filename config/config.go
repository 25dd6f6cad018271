// Package config loads runtime settings from the environment, an optional
// config file and command line flags, through viper.
package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/nixxel-company-limited/escpos-transport/adapter"
)

// Config is the full runtime configuration
type Config struct {
	ServerAddress  string          `mapstructure:"server_address"`
	MetricsAddress string          `mapstructure:"metrics_address"`
	Log            LogConfig       `mapstructure:"log"`
	TCP            TCPConfig       `mapstructure:"tcp"`
	Bluetooth      BluetoothConfig `mapstructure:"bluetooth"`
	USB            USBConfig       `mapstructure:"usb"`
	Session        SessionConfig   `mapstructure:"session"`
	Printer        PrinterConfig   `mapstructure:"printer"`
}

// LogConfig configures the zap logger
type LogConfig struct {
	Level       string         `mapstructure:"level"`
	Format      string         `mapstructure:"format"`
	Outputs     []string       `mapstructure:"outputs"`
	Development bool           `mapstructure:"development"`
	Rotation    RotationConfig `mapstructure:"rotation"`
}

// RotationConfig enables lumberjack rotation for file outputs
type RotationConfig struct {
	Enable     bool   `mapstructure:"enable"`
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

type TCPConfig struct {
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	ResolveTimeout time.Duration `mapstructure:"resolve_timeout"`
	DefaultPort    int           `mapstructure:"default_port"`
}

type BluetoothConfig struct {
	Channel      uint8         `mapstructure:"channel"`
	QueryTimeout time.Duration `mapstructure:"query_timeout"`
}

type USBConfig struct {
	Mode         string        `mapstructure:"mode"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type SessionConfig struct {
	Prefix string `mapstructure:"prefix"`
}

// PrinterConfig is the target printer of the serve, print and probe commands.
// Numeric USB fields use -1 for "not set".
type PrinterConfig struct {
	Transport       string `mapstructure:"transport"`
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Timeout         int    `mapstructure:"timeout_ms"`
	Address         string `mapstructure:"address"`
	VendorID        int    `mapstructure:"vendor_id"`
	ProductID       int    `mapstructure:"product_id"`
	InterfaceNumber int    `mapstructure:"interface_number"`
	SerialNumber    string `mapstructure:"serial_number"`
	SerialPort      string `mapstructure:"serial_port"`
}

// SetDefaults registers every default on v and enables environment lookup,
// so that printer.host is read from PRINTER_HOST.
func SetDefaults(v *viper.Viper) {
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("server_address", "localhost:9100")
	v.SetDefault("metrics_address", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.outputs", []string{"stderr"})
	v.SetDefault("log.development", false)
	v.SetDefault("log.rotation.enable", false)
	v.SetDefault("log.rotation.filename", "")
	v.SetDefault("log.rotation.max_size_mb", 10)
	v.SetDefault("log.rotation.max_backups", 3)
	v.SetDefault("log.rotation.max_age_days", 7)
	v.SetDefault("log.rotation.compress", false)

	v.SetDefault("tcp.connect_timeout", 5*time.Second)
	v.SetDefault("tcp.resolve_timeout", 5*time.Second)
	v.SetDefault("tcp.default_port", adapter.DefaultTCPPort)

	v.SetDefault("bluetooth.channel", adapter.DefaultRFCOMMChannel)
	v.SetDefault("bluetooth.query_timeout", 2500*time.Millisecond)

	v.SetDefault("usb.mode", string(adapter.USBModeAuto))
	v.SetDefault("usb.write_timeout", adapter.DefaultUSBWriteTimeout)

	v.SetDefault("session.prefix", runtime.GOOS)

	v.SetDefault("printer.transport", "")
	v.SetDefault("printer.host", "")
	v.SetDefault("printer.port", 0)
	v.SetDefault("printer.timeout_ms", 0)
	v.SetDefault("printer.address", "")
	v.SetDefault("printer.vendor_id", -1)
	v.SetDefault("printer.product_id", -1)
	v.SetDefault("printer.interface_number", -1)
	v.SetDefault("printer.serial_number", "")
	v.SetDefault("printer.serial_port", "")
}

// Load reads the optional config file, applies defaults and validates the
// result.
func Load(v *viper.Viper, configFile string) (Config, error) {
	SetDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail late
func (c Config) Validate() error {
	if _, err := adapter.ResolveUSBMode(adapter.USBMode(c.USB.Mode), runtime.GOOS); err != nil {
		return fmt.Errorf("usb.mode: %w", err)
	}
	if c.TCP.DefaultPort < 1 || c.TCP.DefaultPort > 65535 {
		return fmt.Errorf("tcp.default_port: invalid port %d", c.TCP.DefaultPort)
	}
	if c.TCP.ConnectTimeout < 0 || c.TCP.ResolveTimeout < 0 {
		return fmt.Errorf("tcp timeouts must not be negative")
	}
	if c.Bluetooth.Channel == 0 || c.Bluetooth.Channel > 30 {
		return fmt.Errorf("bluetooth.channel: must be between 1 and 30, got %d", c.Bluetooth.Channel)
	}
	if c.USB.WriteTimeout <= 0 {
		return fmt.Errorf("usb.write_timeout must be positive")
	}
	if c.Session.Prefix == "" {
		return fmt.Errorf("session.prefix must not be empty")
	}
	return nil
}
