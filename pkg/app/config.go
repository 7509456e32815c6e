package app

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/txn2/bmusic-client/pkg/api"
	"github.com/txn2/bmusic-client/pkg/library"
)

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverFile     = "file"
)

// Config holds the client configuration.
type Config struct {
	API     APIConfig     `yaml:"api"`
	Storage StorageConfig `yaml:"storage"`
	Sync    SyncConfig    `yaml:"sync"`
	Log     LogConfig     `yaml:"log"`
}

// APIConfig configures the remote service.
type APIConfig struct {
	BaseURL   string        `yaml:"base_url"`
	Timeout   time.Duration `yaml:"timeout"`
	UserAgent string        `yaml:"user_agent"`
}

// StorageConfig selects and configures the session store.
type StorageConfig struct {
	Driver string     `yaml:"driver"`
	DSN    string     `yaml:"dsn"`
	File   FileConfig `yaml:"file"`
}

// FileConfig configures the encrypted file store.
type FileConfig struct {
	Path       string `yaml:"path"`
	Passphrase string `yaml:"passphrase"`
	Watch      bool   `yaml:"watch"`
}

// SyncConfig configures profile and library synchronization.
type SyncConfig struct {
	// InvalidateOnProfileError is a pointer so that an explicit false in
	// the file is distinguishable from an omitted key.
	InvalidateOnProfileError *bool  `yaml:"invalidate_on_profile_error"`
	DefaultImage             string `yaml:"default_image"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// LoadConfig loads configuration from a YAML file.
func LoadConfig(path string) (*Config, error) {
	// #nosec G304 -- path is from CLI args
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses YAML configuration, expanding ${VAR} references and
// applying defaults.
func ParseConfig(data []byte) (*Config, error) {
	data = []byte(expandEnvVars(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars expands ${VAR} patterns in the string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		return os.Getenv(varName)
	})
}

// applyDefaults applies default values to the config.
func applyDefaults(cfg *Config) {
	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = api.DefaultBaseURL
	}
	if cfg.API.Timeout == 0 {
		cfg.API.Timeout = api.DefaultTimeout
	}
	if cfg.API.UserAgent == "" {
		cfg.API.UserAgent = "bmusic-client/" + Version
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = DriverSQLite
	}
	if cfg.Storage.Driver == DriverSQLite && cfg.Storage.DSN == "" {
		cfg.Storage.DSN = defaultDataPath("session.db")
	}
	if cfg.Storage.Driver == DriverFile && cfg.Storage.File.Path == "" {
		cfg.Storage.File.Path = defaultDataPath("session.json")
	}
	if cfg.Sync.InvalidateOnProfileError == nil {
		invalidate := true
		cfg.Sync.InvalidateOnProfileError = &invalidate
	}
	if cfg.Sync.DefaultImage == "" {
		cfg.Sync.DefaultImage = library.DefaultProfileImage
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

// defaultDataPath places name in the per-user config directory, falling
// back to the working directory.
func defaultDataPath(name string) string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return name
	}
	return dir + string(os.PathSeparator) + "bmusic" + string(os.PathSeparator) + name
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []string

	if u, err := url.Parse(c.API.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, "api.base_url must be an absolute URL")
	}
	if c.API.Timeout < 0 {
		errs = append(errs, "api.timeout must not be negative")
	}

	switch c.Storage.Driver {
	case DriverMemory:
	case DriverSQLite, DriverPostgres:
		if c.Storage.DSN == "" {
			errs = append(errs, fmt.Sprintf("storage.dsn is required for the %s driver", c.Storage.Driver))
		}
	case DriverFile:
		if c.Storage.File.Path == "" {
			errs = append(errs, "storage.file.path is required for the file driver")
		}
		if c.Storage.File.Passphrase == "" {
			errs = append(errs, "storage.file.passphrase is required for the file driver")
		}
	default:
		errs = append(errs, fmt.Sprintf("storage.driver %q is not one of memory, sqlite, postgres, file", c.Storage.Driver))
	}

	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Sprintf("log.format %q must be text or json", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// SyncSettings returns the synchronizer configuration.
func (c *Config) SyncSettings() library.Config {
	invalidate := true
	if c.Sync.InvalidateOnProfileError != nil {
		invalidate = *c.Sync.InvalidateOnProfileError
	}
	return library.Config{
		InvalidateOnProfileError: invalidate,
		DefaultImage:             c.Sync.DefaultImage,
	}
}
