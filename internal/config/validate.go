package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateRender(); err != nil {
		return err
	}
	if err := c.validateEncoder(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateRender() error {
	if c.Render.Workers < 1 {
		return errors.New("render.workers must be at least 1")
	}
	switch c.Render.Isolation {
	case IsolationProcess, IsolationInProcess:
	default:
		return fmt.Errorf("render.isolation: unsupported value %q (want %q or %q)", c.Render.Isolation, IsolationProcess, IsolationInProcess)
	}
	if c.Render.MemoryFraction <= 0 || c.Render.MemoryFraction > 1 {
		return errors.New("render.memory_fraction must be in (0, 1]")
	}
	if c.Render.AvailableMemoryMB < 0 {
		return errors.New("render.available_memory_mb must be >= 0")
	}
	if c.Render.SampleRate <= 0 {
		return errors.New("render.sample_rate must be positive")
	}
	if !isHexColor(c.Render.PlaceholderColor) {
		return fmt.Errorf("render.placeholder_color: %q is not a #RRGGBB color", c.Render.PlaceholderColor)
	}
	return nil
}

func (c *Config) validateEncoder() error {
	if c.Encoder.CRF < 0 || c.Encoder.CRF > 51 {
		return errors.New("encoder.crf must be between 0 and 51")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

func isHexColor(value string) bool {
	value = strings.TrimPrefix(strings.TrimSpace(value), "#")
	if len(value) != 6 {
		return false
	}
	for _, r := range value {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}
