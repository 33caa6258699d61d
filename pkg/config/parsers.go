package config

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

// ParseDuration parses a duration string falling back to def when empty
// or invalid.
func ParseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// ParseSize parses a human size string ("256KB", "1MiB") into bytes.
func ParseSize(s string, def uint64) uint64 {
	if s == "" {
		return def
	}
	n, err := humanize.ParseBytes(s)
	if err != nil || n == 0 {
		return def
	}
	return n
}

// Validate performs cross-field sanity checks after merging.
func (c *Config) Validate() error {
	switch c.Remote.Mode {
	case "embedded":
		if c.Remote.DBPath == "" {
			return fmt.Errorf("remote.db_path required in embedded mode")
		}
	case "websocket":
		if c.Remote.URL == "" {
			return fmt.Errorf("remote.url required in websocket mode")
		}
	case "redis":
		if c.Remote.Redis.Addr == "" {
			return fmt.Errorf("remote.redis.addr required in redis mode")
		}
	default:
		return fmt.Errorf("unknown remote.mode %q", c.Remote.Mode)
	}
	if c.Retention.Enabled && c.Remote.Mode != "embedded" {
		return fmt.Errorf("retention requires embedded mode")
	}
	return nil
}
