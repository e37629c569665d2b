// control/config.go
// Author: momentics <momentics@gmail.com>
//
// TOML configuration with built-in defaults. Only keys present in the
// file override the defaults.

package control

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/momentics/rcom/api"
)

const (
	DefaultRegistryPort       = 10101
	DefaultLookupPort         = 10102
	DefaultMaxMessageLength   = 128 * 1024 * 1024
	DefaultMaxPayloadLength   = 128 * 1024 * 1024
	DefaultShortMessageLength = 128 * 1024
	DefaultHandshakeTimeout   = 5 * time.Second
	DefaultCloseTimeout       = 5 * time.Second
	DefaultPollInterval       = 20 * time.Millisecond
)

// RegistryConfig locates the registry and its UDP lookup responder.
type RegistryConfig struct {
	Address       api.Address
	LookupPort    uint16
	LookupEnabled bool
}

// WebSocketConfig bounds the WebSocket engine.
type WebSocketConfig struct {
	MaxMessageLength   uint64
	MaxPayloadLength   uint64
	ShortMessageLength int
	HandshakeTimeout   time.Duration
	CloseTimeout       time.Duration
}

// Config is the resolved configuration of an rcom process.
type Config struct {
	Registry     RegistryConfig
	WebSocket    WebSocketConfig
	PollInterval time.Duration
	MetricsAddr  string
	LogLevel     string
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		Registry: RegistryConfig{
			Address:    api.Address{IP: [4]byte{127, 0, 0, 1}, Port: DefaultRegistryPort},
			LookupPort: DefaultLookupPort,
		},
		WebSocket: WebSocketConfig{
			MaxMessageLength:   DefaultMaxMessageLength,
			MaxPayloadLength:   DefaultMaxPayloadLength,
			ShortMessageLength: DefaultShortMessageLength,
			HandshakeTimeout:   DefaultHandshakeTimeout,
			CloseTimeout:       DefaultCloseTimeout,
		},
		PollInterval: DefaultPollInterval,
		LogLevel:     "info",
	}
}

type fileConfig struct {
	Registry struct {
		IP            string `toml:"ip"`
		Port          int    `toml:"port"`
		LookupPort    int    `toml:"lookup_port"`
		LookupEnabled bool   `toml:"lookup_enabled"`
	} `toml:"registry"`
	WebSocket struct {
		MaxMessageLength   int64  `toml:"max_message_length"`
		MaxPayloadLength   int64  `toml:"max_payload_length"`
		ShortMessageLength int    `toml:"short_message_length"`
		HandshakeTimeout   string `toml:"handshake_timeout"`
		CloseTimeout       string `toml:"close_timeout"`
	} `toml:"websocket"`
	Server struct {
		PollInterval string `toml:"poll_interval"`
	} `toml:"server"`
	Metrics struct {
		Listen string `toml:"listen"`
	} `toml:"metrics"`
	Log struct {
		Level string `toml:"level"`
	} `toml:"log"`
}

// LoadConfig reads a TOML file over DefaultConfig.
func LoadConfig(path string) (Config, error) {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	return resolve(raw, meta)
}

// ParseConfig decodes TOML text over DefaultConfig.
func ParseConfig(text string) (Config, error) {
	var raw fileConfig
	meta, err := toml.Decode(text, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return resolve(raw, meta)
}

func resolve(raw fileConfig, meta toml.MetaData) (Config, error) {
	cfg := DefaultConfig()

	if meta.IsDefined("registry", "ip") {
		addr, err := api.NewAddress(strings.TrimSpace(raw.Registry.IP), cfg.Registry.Address.Port)
		if err != nil {
			return Config{}, fmt.Errorf("registry.ip: %w", err)
		}
		cfg.Registry.Address = addr
	}
	if meta.IsDefined("registry", "port") {
		port, err := portValue(raw.Registry.Port)
		if err != nil {
			return Config{}, fmt.Errorf("registry.port: %w", err)
		}
		cfg.Registry.Address.Port = port
	}
	if meta.IsDefined("registry", "lookup_port") {
		port, err := portValue(raw.Registry.LookupPort)
		if err != nil {
			return Config{}, fmt.Errorf("registry.lookup_port: %w", err)
		}
		cfg.Registry.LookupPort = port
	}
	if meta.IsDefined("registry", "lookup_enabled") {
		cfg.Registry.LookupEnabled = raw.Registry.LookupEnabled
	}

	if meta.IsDefined("websocket", "max_message_length") {
		if raw.WebSocket.MaxMessageLength <= 0 {
			return Config{}, fmt.Errorf("websocket.max_message_length: %w", api.ErrInvalidArgument)
		}
		cfg.WebSocket.MaxMessageLength = uint64(raw.WebSocket.MaxMessageLength)
	}
	if meta.IsDefined("websocket", "max_payload_length") {
		if raw.WebSocket.MaxPayloadLength <= 0 {
			return Config{}, fmt.Errorf("websocket.max_payload_length: %w", api.ErrInvalidArgument)
		}
		cfg.WebSocket.MaxPayloadLength = uint64(raw.WebSocket.MaxPayloadLength)
	}
	if meta.IsDefined("websocket", "short_message_length") {
		if raw.WebSocket.ShortMessageLength <= 0 {
			return Config{}, fmt.Errorf("websocket.short_message_length: %w", api.ErrInvalidArgument)
		}
		cfg.WebSocket.ShortMessageLength = raw.WebSocket.ShortMessageLength
	}
	if meta.IsDefined("websocket", "handshake_timeout") {
		d, err := parseDuration(raw.WebSocket.HandshakeTimeout)
		if err != nil {
			return Config{}, fmt.Errorf("websocket.handshake_timeout: %w", err)
		}
		cfg.WebSocket.HandshakeTimeout = d
	}
	if meta.IsDefined("websocket", "close_timeout") {
		d, err := parseDuration(raw.WebSocket.CloseTimeout)
		if err != nil {
			return Config{}, fmt.Errorf("websocket.close_timeout: %w", err)
		}
		cfg.WebSocket.CloseTimeout = d
	}

	if meta.IsDefined("server", "poll_interval") {
		d, err := parseDuration(raw.Server.PollInterval)
		if err != nil {
			return Config{}, fmt.Errorf("server.poll_interval: %w", err)
		}
		cfg.PollInterval = d
	}
	if meta.IsDefined("metrics", "listen") {
		cfg.MetricsAddr = strings.TrimSpace(raw.Metrics.Listen)
	}
	if meta.IsDefined("log", "level") {
		cfg.LogLevel = strings.ToLower(strings.TrimSpace(raw.Log.Level))
	}
	return cfg, nil
}

func portValue(v int) (uint16, error) {
	if v <= 0 || v > 65535 {
		return 0, fmt.Errorf("%w: port %d", api.ErrInvalidArgument, v)
	}
	return uint16(v), nil
}

func parseDuration(raw string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("%w: duration %s", api.ErrInvalidArgument, raw)
	}
	return d, nil
}
