// Package config provides configuration for packetio pools and channels.
// Configuration is loaded from a JSON file named by the PACKETIO_CONFIG
// environment variable; without it the defaults apply.
package config

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
)

// ConfigEnvVar is the environment variable naming the config file.
const ConfigEnvVar = "PACKETIO_CONFIG"

// Byte order names accepted in ChannelConfig.
const (
	BigEndian    = "big"
	LittleEndian = "little"
)

// Config is the root configuration structure
type Config struct {
	Pool    PoolConfig    `json:"pool"`
	Channel ChannelConfig `json:"channel"`
	Log     LogConfig     `json:"log"`
}

// PoolConfig sizes a chunk pool.
type PoolConfig struct {
	Capacity  int `json:"capacity"`   // Idle chunks retained by the pool
	ChunkSize int `json:"chunk_size"` // Bytes per chunk
}

// ChannelConfig tunes a sequential channel.
type ChannelConfig struct {
	// Capacity bounds the bytes staged between writer and reader before the
	// writer suspends.
	Capacity  int    `json:"capacity"`
	AutoFlush bool   `json:"auto_flush"`
	ByteOrder string `json:"byte_order"` // "big" or "little"
}

// Order returns the configured byte order.
func (c ChannelConfig) Order() binary.ByteOrder {
	if c.ByteOrder == LittleEndian {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

// LogConfig controls logging of the packetcat tool.
type LogConfig struct {
	Level  string `json:"level"`  // logrus level name
	Format string `json:"format"` // "text" or "json"
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Pool: PoolConfig{
			Capacity:  1000,
			ChunkSize: 4096,
		},
		Channel: ChannelConfig{
			Capacity:  4088,
			ByteOrder: BigEndian,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from the file named by PACKETIO_CONFIG, or
// returns the defaults when the variable is unset.
func Load() (*Config, error) {
	path := os.Getenv(ConfigEnvVar)
	if path == "" {
		return DefaultConfig(), nil
	}
	return LoadFrom(path)
}

// LoadFrom loads configuration from a specific path. Absent or empty fields
// take their default values.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found at %s: %w", path, err)
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	// Absent fields keep their defaults; an explicit pool capacity of 0
	// disables chunk retention.
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	defaults := DefaultConfig()

	if c.Pool.ChunkSize == 0 {
		c.Pool.ChunkSize = defaults.Pool.ChunkSize
	}
	if c.Channel.Capacity == 0 {
		c.Channel.Capacity = defaults.Channel.Capacity
	}
	if c.Channel.ByteOrder == "" {
		c.Channel.ByteOrder = defaults.Channel.ByteOrder
	}
	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = defaults.Log.Format
	}
}
