package config

import (
	"fmt"

	"github.com/containerd/errdefs"
)

// Validate validates the entire configuration.
func (c *Config) Validate() error {
	if err := c.validatePool(); err != nil {
		return fmt.Errorf("pool: %w", err)
	}
	if err := c.validateChannel(); err != nil {
		return fmt.Errorf("channel: %w", err)
	}
	if err := c.validateLog(); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	return nil
}

func (c *Config) validatePool() error {
	if c.Pool.Capacity < 0 {
		return fmt.Errorf("capacity must not be negative, got %d: %w", c.Pool.Capacity, errdefs.ErrInvalidArgument)
	}
	// 8 bytes is the widest scalar.
	if c.Pool.ChunkSize < 8 {
		return fmt.Errorf("chunk_size must be at least 8, got %d: %w", c.Pool.ChunkSize, errdefs.ErrInvalidArgument)
	}
	return nil
}

func (c *Config) validateChannel() error {
	if c.Channel.Capacity <= 0 {
		return fmt.Errorf("capacity must be positive, got %d: %w", c.Channel.Capacity, errdefs.ErrInvalidArgument)
	}
	switch c.Channel.ByteOrder {
	case BigEndian, LittleEndian:
	default:
		return fmt.Errorf("byte_order must be %q or %q, got %q: %w", BigEndian, LittleEndian, c.Channel.ByteOrder, errdefs.ErrInvalidArgument)
	}
	return nil
}

func (c *Config) validateLog() error {
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("format must be \"text\" or \"json\", got %q: %w", c.Log.Format, errdefs.ErrInvalidArgument)
	}
	switch c.Log.Level {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal", "panic":
	default:
		return fmt.Errorf("unknown level %q: %w", c.Log.Level, errdefs.ErrInvalidArgument)
	}
	return nil
}
