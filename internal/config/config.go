// Package config loads ghpsync settings. Values are layered from defaults,
// the config file, GHPSYNC_* environment variables and command line flags,
// later layers winning.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. GHPSYNC_LOG_FILE.
const EnvPrefix = "GHPSYNC"

// LogConfig configures log output and rotation.
type LogConfig struct {
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Verbose    bool   `mapstructure:"verbose"`
}

// Config is the resolved configuration.
type Config struct {
	Token           string        `mapstructure:"token"`
	Endpoint        string        `mapstructure:"endpoint"`
	Owner           string        `mapstructure:"owner"`
	Project         int           `mapstructure:"project"`
	AutoSyncSeconds int           `mapstructure:"auto_sync_seconds"`
	CacheTTL        time.Duration `mapstructure:"cache_ttl"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	PushConcurrency int           `mapstructure:"push_concurrency"`
	Log             LogConfig     `mapstructure:"log"`
}

// AutoSyncInterval returns the auto-sync period. Zero or less disables it.
func (c *Config) AutoSyncInterval() time.Duration {
	return time.Duration(c.AutoSyncSeconds) * time.Second
}

// Validate reports settings that cannot work.
func (c *Config) Validate() error {
	var errs []error
	if c.Project < 0 {
		errs = append(errs, fmt.Errorf("project must be a positive number, got %d", c.Project))
	}
	if c.CacheTTL <= 0 {
		errs = append(errs, fmt.Errorf("cache_ttl must be positive, got %s", c.CacheTTL))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("request_timeout must be positive, got %s", c.RequestTimeout))
	}
	if c.PushConcurrency < 1 {
		errs = append(errs, fmt.Errorf("push_concurrency must be at least 1, got %d", c.PushConcurrency))
	}
	return errors.Join(errs...)
}

// DefaultDir returns the directory the config file is looked up in,
// normally $XDG_CONFIG_HOME/ghpsync.
func DefaultDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "ghpsync")
}

// DefaultPath returns the default config file path.
func DefaultPath() string {
	return filepath.Join(DefaultDir(), "config.yaml")
}

// flagKeys maps flag names to config keys.
var flagKeys = map[string]string{
	"token":     "token",
	"endpoint":  "endpoint",
	"owner":     "owner",
	"project":   "project",
	"auto-sync": "auto_sync_seconds",
	"verbose":   "log.verbose",
	"log-file":  "log.file",
}

// Loader reads configuration with its own viper instance.
type Loader struct {
	v *viper.Viper

	mu      sync.Mutex
	watched bool
}

// NewLoader creates a Loader with defaults and environment binding set up.
func NewLoader() *Loader {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return &Loader{v: v}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("token", "")
	v.SetDefault("endpoint", "https://api.github.com/graphql")
	v.SetDefault("owner", "")
	v.SetDefault("project", 0)
	v.SetDefault("auto_sync_seconds", 60)
	v.SetDefault("cache_ttl", 5*time.Minute)
	v.SetDefault("request_timeout", 30*time.Second)
	v.SetDefault("push_concurrency", 4)
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)
	v.SetDefault("log.verbose", false)
}

// BindFlags binds the known flags present in flags. Flags that were not set
// on the command line do not override the file or environment.
func (l *Loader) BindFlags(flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		flag := flags.Lookup(name)
		if flag == nil {
			continue
		}
		if err := l.v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("bind flag --%s: %w", name, err)
		}
	}
	return nil
}

// Load reads path, or the default config file when path is empty, and
// returns the merged configuration. A missing default file is not an error;
// a missing explicit file is.
func (l *Loader) Load(path string) (*Config, error) {
	l.v.SetConfigType("yaml")
	if path != "" {
		l.v.SetConfigFile(path)
	} else {
		l.v.SetConfigName("config")
		l.v.AddConfigPath(DefaultDir())
	}

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	return l.decode()
}

func (l *Loader) decode() (*Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// FileUsed returns the config file that was read, or "" if none was.
func (l *Loader) FileUsed() string {
	return l.v.ConfigFileUsed()
}

// Watch calls fn with the reloaded configuration whenever the config file
// changes. Changes that fail to decode or validate go to onErr instead.
// It fails if Load found no file to watch.
func (l *Loader) Watch(fn func(*Config), onErr func(error)) error {
	if l.v.ConfigFileUsed() == "" {
		return errors.New("no config file to watch")
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.watched {
		return errors.New("config file is already watched")
	}
	l.watched = true

	l.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := l.decode()
		if err != nil {
			if onErr != nil {
				onErr(err)
			}
			return
		}
		fn(cfg)
	})
	l.v.WatchConfig()
	return nil
}

// Load is a shorthand for NewLoader().Load(path) without flag binding.
func Load(path string) (*Config, error) {
	return NewLoader().Load(path)
}
