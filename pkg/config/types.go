package config

// Config is the main configuration struct.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Remote    RemoteConfig    `yaml:"remote"`
	Feed      FeedConfig      `yaml:"feed"`
	Identity  IdentityConfig  `yaml:"identity"`
	Retention RetentionConfig `yaml:"retention"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds the local HTTP surface settings.
type ServerConfig struct {
	Address string    `yaml:"address"`
	Port    int       `yaml:"port"`
	TLS     TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate configuration.
type TLSConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// RemoteConfig selects and configures the remote collection backend.
// Mode is one of "embedded", "websocket", "redis".
type RemoteConfig struct {
	Mode   string      `yaml:"mode"`
	URL    string      `yaml:"url"`
	DBPath string      `yaml:"db_path"`
	Redis  RedisConfig `yaml:"redis"`
}

// RedisConfig holds redis collection settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	// Keyspace prefixes document keys and the change channel.
	Keyspace string `yaml:"keyspace"`
}

// FeedConfig holds sync-engine tunables.
type FeedConfig struct {
	// Cooldown is the minimum interval between accepted sends per
	// principal (duration string, default "5s").
	Cooldown string `yaml:"cooldown"`
	// KnownTags always appear in the popularity ranking, at zero count
	// when unused.
	KnownTags []string `yaml:"known_tags"`
	// QueueCapacity bounds the intake queue (default 65536).
	QueueCapacity int `yaml:"queue_capacity"`
	// MaxPayload caps a single document snapshot (size string, e.g.
	// "256KB").
	MaxPayload string `yaml:"max_payload"`
	// MaxContentLen and MaxTitleLen cap outbound sends (runes).
	MaxContentLen int `yaml:"max_content_len"`
	MaxTitleLen   int `yaml:"max_title_len"`
}

// IdentityConfig configures the identity provider adapter.
type IdentityConfig struct {
	// TokenSecret verifies HS256 id tokens presented at sign-in.
	TokenSecret string `yaml:"token_secret"`
	// AdminEmails are principals granted the administrator flag.
	AdminEmails []string `yaml:"admin_emails"`
	// AdminPassphraseBcrypt optionally allows escalation with a shared
	// passphrase (bcrypt hash).
	AdminPassphraseBcrypt string `yaml:"admin_passphrase_bcrypt"`
}

// RetentionConfig schedules tombstone sweeps on the embedded collection.
type RetentionConfig struct {
	Enabled bool `yaml:"enabled"`
	// Cron is a standard 5-field cron expression; empty means daily at
	// 02:00.
	Cron string `yaml:"cron"`
	// TombstoneTTL is how long removed-document tombstones are kept
	// (duration string, default "720h").
	TombstoneTTL string `yaml:"tombstone_ttl"`
}

// LoggingConfig holds log level configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}
