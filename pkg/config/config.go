package config

import (
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Defaults applied when neither file, env nor flags provide a value.
const (
	DefaultAddress       = "127.0.0.1"
	DefaultPort          = 8080
	DefaultMode          = "embedded"
	DefaultDBPath        = "./retrolog-data"
	DefaultCooldown      = "5s"
	DefaultQueueCapacity = 64 * 1024
	DefaultMaxPayload    = "256KB"
)

// ParseCommandFlags parses the process flags and reports which were set
// explicitly so callers can apply flag-wins precedence.
func ParseCommandFlags() (addr, db, mode, cfgPath string, setFlags map[string]bool) {
	a := flag.String("addr", net.JoinHostPort(DefaultAddress, strconv.Itoa(DefaultPort)), "listen address for the local API")
	d := flag.String("db", DefaultDBPath, "path for the embedded collection database")
	m := flag.String("mode", "", "remote collection mode: embedded, websocket or redis")
	c := flag.String("config", "", "path to YAML config file")
	flag.Parse()
	setFlags = map[string]bool{}
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = true })
	return *a, *d, *m, *c, setFlags
}

// ResolveConfigPath picks the config file path: explicit flag wins, then
// RETROLOG_CONFIG, then ./retrolog.yaml if it exists.
func ResolveConfigPath(flagVal string, flagSet bool) string {
	if flagSet && flagVal != "" {
		return flagVal
	}
	if p := strings.TrimSpace(os.Getenv("RETROLOG_CONFIG")); p != "" {
		return p
	}
	if _, err := os.Stat("retrolog.yaml"); err == nil {
		return "retrolog.yaml"
	}
	return ""
}

// Load reads and parses the YAML config file at path.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("no config path provided")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &c, nil
}

// LoadEffective merges file config with RETROLOG_* environment overrides
// and fills defaults. A missing file is not an error; env and defaults
// still apply. envUsed reports whether any env override took effect.
func LoadEffective(path string) (*Config, bool, error) {
	cfg := &Config{}
	if path != "" {
		loaded, err := Load(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, false, err
			}
		} else {
			cfg = loaded
		}
	}
	envUsed := applyEnv(cfg)
	applyDefaults(cfg)
	return cfg, envUsed, nil
}

func applyEnv(c *Config) bool {
	used := false
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
			used = true
		}
	}
	set(&c.Remote.Mode, "RETROLOG_REMOTE_MODE")
	set(&c.Remote.URL, "RETROLOG_REMOTE_URL")
	set(&c.Remote.DBPath, "RETROLOG_DB_PATH")
	set(&c.Remote.Redis.Addr, "RETROLOG_REDIS_ADDR")
	set(&c.Remote.Redis.Password, "RETROLOG_REDIS_PASSWORD")
	set(&c.Remote.Redis.Keyspace, "RETROLOG_REDIS_KEYSPACE")
	set(&c.Identity.TokenSecret, "RETROLOG_TOKEN_SECRET")
	set(&c.Feed.Cooldown, "RETROLOG_COOLDOWN")
	set(&c.Logging.Level, "RETROLOG_LOG_LEVEL")
	if v := strings.TrimSpace(os.Getenv("RETROLOG_ADDR")); v != "" {
		if host, port, err := net.SplitHostPort(v); err == nil {
			c.Server.Address = host
			if p, perr := strconv.Atoi(port); perr == nil {
				c.Server.Port = p
			}
			used = true
		}
	}
	if v := strings.TrimSpace(os.Getenv("RETROLOG_ADMIN_EMAILS")); v != "" {
		c.Identity.AdminEmails = splitAndTrim(v)
		used = true
	}
	return used
}

func applyDefaults(c *Config) {
	if c.Server.Address == "" {
		c.Server.Address = DefaultAddress
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Remote.Mode == "" {
		c.Remote.Mode = DefaultMode
	}
	if c.Remote.DBPath == "" {
		c.Remote.DBPath = DefaultDBPath
	}
	if c.Remote.Redis.Keyspace == "" {
		c.Remote.Redis.Keyspace = "retrolog"
	}
	if c.Feed.Cooldown == "" {
		c.Feed.Cooldown = DefaultCooldown
	}
	if c.Feed.QueueCapacity <= 0 {
		c.Feed.QueueCapacity = DefaultQueueCapacity
	}
	if c.Feed.MaxPayload == "" {
		c.Feed.MaxPayload = DefaultMaxPayload
	}
	if c.Feed.MaxContentLen <= 0 {
		c.Feed.MaxContentLen = 4000
	}
	if c.Feed.MaxTitleLen <= 0 {
		c.Feed.MaxTitleLen = 200
	}
	if c.Retention.TombstoneTTL == "" {
		c.Retention.TombstoneTTL = "720h"
	}
}

// Addr returns the host:port listen address for the local API.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Server.Address, strconv.Itoa(c.Server.Port))
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
