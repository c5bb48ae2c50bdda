// Package config loads hbadvisor runtime configuration.
//
// Precedence (highest to lowest): CLI flags bound with BindFlags,
// HBADVISOR_* environment variables, hbadvisor.yaml, built-in defaults.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/HendryAvila/hbadvisor/internal/knowledge"
	"github.com/HendryAvila/hbadvisor/internal/logging"
	"github.com/HendryAvila/hbadvisor/internal/scheduler"
	"github.com/HendryAvila/hbadvisor/internal/upstream"
)

// EnvPrefix prefixes every environment variable, e.g. HBADVISOR_DATA_DIR.
const EnvPrefix = "HBADVISOR"

// LogConfig controls the process logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Config holds all runtime configuration.
type Config struct {
	DataDir         string        `mapstructure:"data_dir"`
	UpdateInterval  time.Duration `mapstructure:"update_interval"`
	RefreshCooldown time.Duration `mapstructure:"refresh_cooldown"`
	GitHubToken     string        `mapstructure:"github_token"`
	ReleaseURL      string        `mapstructure:"release_url"`
	PackageIndexURL string        `mapstructure:"package_index_url"`
	HTTPTimeout     time.Duration `mapstructure:"http_timeout"`
	MetricsAddr     string        `mapstructure:"metrics_addr"`
	Log             LogConfig     `mapstructure:"log"`
}

// Default returns the built-in configuration.
func Default() Config {
	sched := scheduler.DefaultConfig()
	up := upstream.DefaultConfig()
	return Config{
		DataDir:         knowledge.DefaultConfig().DataDir,
		UpdateInterval:  sched.Interval,
		RefreshCooldown: sched.RefreshCooldown,
		ReleaseURL:      up.ReleaseURL,
		PackageIndexURL: up.PackageIndexURL,
		HTTPTimeout:     up.Timeout,
		Log:             LogConfig{Level: "info", Format: logging.FormatPretty},
	}
}

// New creates a viper instance with defaults, the optional config file and
// environment bindings. configFile may be empty, in which case hbadvisor.yaml
// is looked up in the working directory and in the default data dir.
func New(configFile string) (*viper.Viper, error) {
	v := viper.New()

	d := Default()
	v.SetDefault("data_dir", d.DataDir)
	v.SetDefault("update_interval", d.UpdateInterval)
	v.SetDefault("refresh_cooldown", d.RefreshCooldown)
	v.SetDefault("github_token", "")
	v.SetDefault("release_url", d.ReleaseURL)
	v.SetDefault("package_index_url", d.PackageIndexURL)
	v.SetDefault("http_timeout", d.HTTPTimeout)
	v.SetDefault("metrics_addr", "")
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("hbadvisor")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(d.DataDir)
	}
	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine when none was requested.
		if configFile != "" || !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("config: reading %s: %w", v.ConfigFileUsed(), err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// BindFlags binds every flag in fs that names a config key. Dashes map to
// underscores and the log- prefix maps to the log section, so --data-dir
// binds data_dir and --log-level binds log.level.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	var err error
	fs.VisitAll(func(f *pflag.Flag) {
		key := flagKey(f.Name)
		if !knownKeys[key] {
			return
		}
		if bindErr := v.BindPFlag(key, f); bindErr != nil && err == nil {
			err = bindErr
		}
	})
	return err
}

var knownKeys = map[string]bool{
	"data_dir": true, "update_interval": true, "refresh_cooldown": true,
	"github_token": true, "release_url": true, "package_index_url": true,
	"http_timeout": true, "metrics_addr": true, "log.level": true, "log.format": true,
}

func flagKey(name string) string {
	if rest, ok := strings.CutPrefix(name, "log-"); ok {
		return "log." + strings.ReplaceAll(rest, "-", "_")
	}
	return strings.ReplaceAll(name, "-", "_")
}

// Load unmarshals and validates configuration from v. The conventional
// GITHUB_TOKEN variable is used when no hbadvisor token is configured.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if cfg.GitHubToken == "" {
		cfg.GitHubToken = os.Getenv("GITHUB_TOKEN")
	}
	cfg.DataDir = expandHome(cfg.DataDir)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects values the rest of the program cannot run with.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.DataDir) == "" {
		errs = append(errs, errors.New("data_dir must not be empty"))
	}
	if c.UpdateInterval <= 0 {
		errs = append(errs, fmt.Errorf("update_interval must be positive, got %s", c.UpdateInterval))
	}
	if c.HTTPTimeout <= 0 {
		errs = append(errs, fmt.Errorf("http_timeout must be positive, got %s", c.HTTPTimeout))
	}
	if c.RefreshCooldown < 0 {
		errs = append(errs, fmt.Errorf("refresh_cooldown must not be negative, got %s", c.RefreshCooldown))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if !logging.ValidFormat(c.Log.Format) {
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// Knowledge derives the knowledge store configuration.
func (c Config) Knowledge() knowledge.Config {
	return knowledge.Config{DataDir: c.DataDir}
}

// Scheduler derives the scheduler configuration.
func (c Config) Scheduler() scheduler.Config {
	return scheduler.Config{Interval: c.UpdateInterval, RefreshCooldown: c.RefreshCooldown}
}

// Upstream derives the upstream client configuration.
func (c Config) Upstream(version string) upstream.Config {
	return upstream.Config{
		ReleaseURL:      c.ReleaseURL,
		PackageIndexURL: c.PackageIndexURL,
		Token:           c.GitHubToken,
		Timeout:         c.HTTPTimeout,
		UserAgent:       "hbadvisor/" + version,
	}
}

// Logger builds the process logger.
func (c Config) Logger() *slog.Logger {
	level, _ := logging.ParseLevel(c.Log.Level)
	return logging.New(logging.WithLevel(level), logging.WithFormat(c.Log.Format))
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}
