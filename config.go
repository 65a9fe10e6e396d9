package ormkit

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ConnectionConfig holds pool and connection tuning shared across every
// backend, extended from the teacher's Config (MaxOpenConns/MaxIdleConns/
// ConnMaxLifetime/ConnMaxIdleTime/Timeout/Logger) with the TLS, encoding,
// timezone, and backend-specific groups spec §6 adds.
type ConnectionConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	Timeout         time.Duration
	Logger          Logger

	TLSMode     string
	TLSCertFile string
	TLSKeyFile  string
	TLSCAFile   string

	Encoding string
	Timezone string

	// Extra carries backend-specific options this struct has no named
	// field for (e.g. MSSQL's "encrypt" or MySQL's "parseTime"), keyed by
	// lowercase option name.
	Extra map[string]string
}

// Option configures a ConnectionConfig. Mirrors the teacher's functional
// options set (WithMaxOpenConns/WithMaxIdleConns/...) one for one, plus
// the additions above.
type Option func(*ConnectionConfig)

func WithMaxOpenConns(n int) Option    { return func(c *ConnectionConfig) { c.MaxOpenConns = n } }
func WithMaxIdleConns(n int) Option    { return func(c *ConnectionConfig) { c.MaxIdleConns = n } }
func WithConnMaxLifetime(d time.Duration) Option {
	return func(c *ConnectionConfig) { c.ConnMaxLifetime = d }
}
func WithConnMaxIdleTime(d time.Duration) Option {
	return func(c *ConnectionConfig) { c.ConnMaxIdleTime = d }
}
func WithTimeout(d time.Duration) Option { return func(c *ConnectionConfig) { c.Timeout = d } }
func WithLogger(l Logger) Option         { return func(c *ConnectionConfig) { c.Logger = l } }
func WithTLS(mode, certFile, keyFile, caFile string) Option {
	return func(c *ConnectionConfig) {
		c.TLSMode = mode
		c.TLSCertFile = certFile
		c.TLSKeyFile = keyFile
		c.TLSCAFile = caFile
	}
}
func WithEncoding(encoding string) Option { return func(c *ConnectionConfig) { c.Encoding = encoding } }
func WithTimezone(tz string) Option       { return func(c *ConnectionConfig) { c.Timezone = tz } }
func WithExtra(key, value string) Option {
	return func(c *ConnectionConfig) {
		if c.Extra == nil {
			c.Extra = make(map[string]string)
		}
		c.Extra[strings.ToLower(key)] = value
	}
}

// DefaultConfig mirrors the teacher's defaultConfig: a conservative pool
// with no hard timeout and the package-wide no-op logger.
func DefaultConfig() *ConnectionConfig {
	return &ConnectionConfig{
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 10 * time.Minute,
		Logger:          defaultLogger,
		Extra:           make(map[string]string),
	}
}

// NewConfig applies opts over DefaultConfig, the way the teacher's
// Open(dsn, opts...) builds its Config before calling sql.Open.
func NewConfig(opts ...Option) *ConnectionConfig {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// FromEnv hydrates a ConnectionConfig from environment variables named
// "<prefix>_<FIELD>" (e.g. prefix "ORMKIT" reads ORMKIT_MAX_OPEN_CONNS),
// and routes any "<prefix>OPT_<NAME>" variable into Extra under the
// lowercased NAME. Spec §6: unrecognized backend-specific settings travel
// through Extra rather than failing config parsing.
func FromEnv(prefix string) (*ConnectionConfig, error) {
	cfg := DefaultConfig()
	prefix = strings.ToUpper(strings.TrimSuffix(prefix, "_"))

	if v, ok := os.LookupEnv(prefix + "_MAX_OPEN_CONNS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("ormkit: invalid %s_MAX_OPEN_CONNS: %w", prefix, err)
		}
		cfg.MaxOpenConns = n
	}
	if v, ok := os.LookupEnv(prefix + "_MAX_IDLE_CONNS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("ormkit: invalid %s_MAX_IDLE_CONNS: %w", prefix, err)
		}
		cfg.MaxIdleConns = n
	}
	if v, ok := os.LookupEnv(prefix + "_CONN_MAX_LIFETIME"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("ormkit: invalid %s_CONN_MAX_LIFETIME: %w", prefix, err)
		}
		cfg.ConnMaxLifetime = d
	}
	if v, ok := os.LookupEnv(prefix + "_CONN_MAX_IDLE_TIME"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("ormkit: invalid %s_CONN_MAX_IDLE_TIME: %w", prefix, err)
		}
		cfg.ConnMaxIdleTime = d
	}
	if v, ok := os.LookupEnv(prefix + "_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("ormkit: invalid %s_TIMEOUT: %w", prefix, err)
		}
		cfg.Timeout = d
	}
	if v, ok := os.LookupEnv(prefix + "_TLS_MODE"); ok {
		cfg.TLSMode = v
	}
	if v, ok := os.LookupEnv(prefix + "_ENCODING"); ok {
		cfg.Encoding = v
	}
	if v, ok := os.LookupEnv(prefix + "_TIMEZONE"); ok {
		cfg.Timezone = v
	}

	optPrefix := prefix + "OPT_"
	for _, kv := range os.Environ() {
		name, value, found := strings.Cut(kv, "=")
		if !found || !strings.HasPrefix(name, optPrefix) {
			continue
		}
		key := strings.ToLower(strings.TrimPrefix(name, optPrefix))
		if cfg.Extra == nil {
			cfg.Extra = make(map[string]string)
		}
		cfg.Extra[key] = value
	}

	return cfg, nil
}
