package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strconv"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPath        = "opsboard.yaml"
	DefaultDatabaseURL = "opsboard.db"
	DefaultPort        = 9000
)

// Config is the top-level configuration.
type Config struct {
	Database    DatabaseConfig   `yaml:"database"`
	Server      ServerConfig     `yaml:"server"`
	Log         LogConfig        `yaml:"log,omitempty"`
	Import      ImportConfig     `yaml:"import,omitempty"`
	WorkCenters WorkCenterConfig `yaml:"work_centers,omitempty"`
	CacheTTL    time.Duration    `yaml:"cache_ttl,omitempty"`

	// Warnings collects the fallbacks applied while loading.
	Warnings []string `yaml:"-"`
}

// DatabaseConfig names the two backend tiers. URL is read with the public
// role; ServiceURL carries writes.
type DatabaseConfig struct {
	URL        string `yaml:"url"`
	ServiceURL string `yaml:"service_url,omitempty"`
}

// ServerConfig configures the HTTP surface. Keys may be bcrypt hashes.
type ServerConfig struct {
	Port           int      `yaml:"port"`
	PublicKey      string   `yaml:"public_key,omitempty"`
	ServiceKey     string   `yaml:"service_key,omitempty"`
	AllowedOrigins []string `yaml:"allowed_origins,omitempty"`
}

type LogConfig struct {
	Level  string `yaml:"level,omitempty"`  // debug, info, warn, error
	Format string `yaml:"format,omitempty"` // json or console
}

type ImportConfig struct {
	BatchSize int           `yaml:"batch_size,omitempty"`
	Delay     time.Duration `yaml:"delay,omitempty"`
	Sheet     string        `yaml:"sheet,omitempty"`
}

type WorkCenterConfig struct {
	CapacityHours float64 `yaml:"capacity_hours,omitempty"`
}

// Load reads path, applies environment overrides, then defaults. A missing
// file is not an error when path is the default.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if path == "" {
		path = DefaultPath
	}

	cfg := &Config{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := cfg.resolveSecrets(); err != nil {
		return nil, fmt.Errorf("resolving secrets: %w", err)
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("OPSBOARD_DATABASE_URL", &c.Database.URL)
	str("OPSBOARD_SERVICE_DATABASE_URL", &c.Database.ServiceURL)
	str("OPSBOARD_PUBLIC_KEY", &c.Server.PublicKey)
	str("OPSBOARD_SERVICE_KEY", &c.Server.ServiceKey)
	str("OPSBOARD_LOG_LEVEL", &c.Log.Level)
	if v, ok := lookup("OPSBOARD_PORT"); ok && v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("OPSBOARD_PORT: %w", err)
		}
		c.Server.Port = p
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Database.URL == "" {
		c.Database.URL = DefaultDatabaseURL
		c.Warnings = append(c.Warnings, "no database url configured; using local "+DefaultDatabaseURL)
	}
	if c.Database.ServiceURL == "" {
		c.Database.ServiceURL = c.Database.URL
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Server.ServiceKey == "" {
		c.Warnings = append(c.Warnings, "no service key configured; write endpoints are unauthenticated")
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Import.BatchSize <= 0 {
		c.Import.BatchSize = 50
	}
	if c.Import.Delay == 0 {
		c.Import.Delay = 500 * time.Millisecond
	}
	if c.WorkCenters.CapacityHours <= 0 {
		c.WorkCenters.CapacityHours = 40
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = 30 * time.Second
	}
}

// LogWarnings reports the fallbacks applied by Load.
func (c *Config) LogWarnings(log *zap.Logger) {
	for _, w := range c.Warnings {
		log.Warn(w)
	}
}

var secretPattern = regexp.MustCompile(`^\$\{ENV:([^}]+)\}$`)

func (c *Config) resolveSecrets() error {
	for _, v := range []*string{
		&c.Database.URL, &c.Database.ServiceURL, &c.Server.PublicKey, &c.Server.ServiceKey,
	} {
		r, err := ResolveValue(*v)
		if err != nil {
			return err
		}
		*v = r
	}
	return nil
}

// ResolveValue expands a "${ENV:NAME}" reference. Other values are returned
// unchanged.
func ResolveValue(val string) (string, error) {
	m := secretPattern.FindStringSubmatch(val)
	if m == nil {
		return val, nil
	}
	v := os.Getenv(m[1])
	if v == "" {
		return "", fmt.Errorf("environment variable %s not set", m[1])
	}
	return v, nil
}
