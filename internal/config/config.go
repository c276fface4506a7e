// Package config handles configuration loading for orlo-deployer.
// It layers built-in defaults, a user config file, a project config file,
// ORLO_* environment variables and command-line flags.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ShayCichocki/orlo-deployer/internal/install"
	"github.com/ShayCichocki/orlo-deployer/internal/orlo"
)

// ProjectConfigName is the per-project config file looked up from the
// working directory towards the filesystem root.
const ProjectConfigName = ".orlo-deployer.yaml"

// Config holds all configuration for orlo-deployer.
type Config struct {
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator" yaml:"orchestrator"`
	Release      ReleaseConfig      `mapstructure:"release" yaml:"release"`
	Install      InstallConfig      `mapstructure:"install" yaml:"install"`
	Journal      JournalConfig      `mapstructure:"journal" yaml:"journal"`
	Log          LogConfig          `mapstructure:"log" yaml:"log"`
}

// OrchestratorConfig holds the connection to the Orlo server. An empty URL
// means no orchestrator: the deployer installs locally and reports nothing.
type OrchestratorConfig struct {
	URL      string        `mapstructure:"url" yaml:"url"`
	Username string        `mapstructure:"username" yaml:"username"`
	Password string        `mapstructure:"password" yaml:"password"`
	Token    string        `mapstructure:"token" yaml:"token"`
	Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// ReleaseConfig describes the release to attach to or create.
type ReleaseConfig struct {
	// ID selects an existing release; empty creates a new one.
	ID         string            `mapstructure:"id" yaml:"id"`
	User       string            `mapstructure:"user" yaml:"user"`
	Team       string            `mapstructure:"team" yaml:"team"`
	Platforms  []string          `mapstructure:"-" yaml:"platforms"`
	References []string          `mapstructure:"-" yaml:"references"`
	Note       string            `mapstructure:"note" yaml:"note"`
	Metadata   map[string]string `mapstructure:"metadata" yaml:"metadata"`
	Rollback   bool              `mapstructure:"-" yaml:"rollback"`
}

// InstallConfig selects the local install action.
type InstallConfig struct {
	// Command is a text/template shell command; empty uses the simulated install.
	Command string        `mapstructure:"command" yaml:"command"`
	Delay   time.Duration `mapstructure:"delay" yaml:"delay"`
	// Dir is the working directory of the install command; empty inherits ours.
	Dir string `mapstructure:"dir" yaml:"dir"`
	// ReportResults posts install output to the orchestrator.
	ReportResults bool `mapstructure:"report_results" yaml:"report_results"`
}

// JournalConfig enables the local SQLite run journal when Path is set.
type JournalConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	File  string `mapstructure:"file" yaml:"file"`
}

// Standalone reports whether no orchestrator is configured.
func (c *Config) Standalone() bool {
	return c.Orchestrator.URL == ""
}

// envBindings maps config keys to the environment variables that set them.
var envBindings = map[string]string{
	"orchestrator.url":       "ORLO_URL",
	"orchestrator.username":  "ORLO_USERNAME",
	"orchestrator.password":  "ORLO_PASSWORD",
	"orchestrator.token":     "ORLO_TOKEN",
	"orchestrator.timeout":   "ORLO_TIMEOUT",
	"release.id":             "ORLO_RELEASE",
	"release.user":           "ORLO_USER",
	"release.team":           "ORLO_TEAM",
	"release.platforms":      "ORLO_PLATFORMS",
	"release.references":     "ORLO_REFERENCES",
	"release.note":           "ORLO_NOTE",
	"install.command":        "ORLO_INSTALL_COMMAND",
	"install.delay":          "ORLO_INSTALL_DELAY",
	"install.dir":            "ORLO_INSTALL_DIR",
	"install.report_results": "ORLO_REPORT_RESULTS",
	"journal.path":           "ORLO_JOURNAL",
	"log.level":              "ORLO_LOG_LEVEL",
	"log.file":               "ORLO_LOG_FILE",
}

// RollbackEnv is presence-based: set at all, even empty, means rollback.
const RollbackEnv = "ORLO_ROLLBACK"

// flagBindings maps command-line flag names to config keys.
var flagBindings = map[string]string{
	"url":             "orchestrator.url",
	"timeout":         "orchestrator.timeout",
	"release":         "release.id",
	"user":            "release.user",
	"team":            "release.team",
	"platforms":       "release.platforms",
	"references":      "release.references",
	"note":            "release.note",
	"rollback":        "release.rollback",
	"install-command": "install.command",
	"install-delay":   "install.delay",
	"install-dir":     "install.dir",
	"report-results":  "install.report_results",
	"journal":         "journal.path",
	"log-level":       "log.level",
	"log-file":        "log.file",
}

// Options control where Load looks for configuration.
type Options struct {
	// File replaces the user and project config files when set.
	File string
	// Flags are bound over every other source when they were changed.
	Flags *pflag.FlagSet
}

// Load loads configuration.
// Precedence (highest to lowest):
// 1. Command-line flags
// 2. ORLO_* environment variables
// 3. Project config (.orlo-deployer.yaml in current directory or parent)
// 4. User config (~/.config/orlo-deployer/config.yaml)
// 5. Built-in defaults
func Load(opts Options) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if opts.File != "" {
		v.SetConfigFile(opts.File)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config from %s: %w", opts.File, err)
		}
	} else if err := readLayeredConfig(v); err != nil {
		return nil, err
	}

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	if opts.Flags != nil {
		for name, key := range flagBindings {
			f := opts.Flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag --%s: %w", name, err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Release.Platforms = stringList(v.Get("release.platforms"))
	cfg.Release.References = stringList(v.Get("release.references"))
	cfg.Release.Rollback = v.GetBool("release.rollback")
	if _, ok := os.LookupEnv(RollbackEnv); ok {
		cfg.Release.Rollback = true
	}

	cfg.Orchestrator.Password = os.ExpandEnv(cfg.Orchestrator.Password)
	cfg.Orchestrator.Token = os.ExpandEnv(cfg.Orchestrator.Token)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// readLayeredConfig reads the user config, then merges the project config over it.
func readLayeredConfig(v *viper.Viper) error {
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("reading user config: %w", err)
		}
	}

	projectConfig := findProjectConfig()
	if projectConfig == "" {
		return nil
	}
	projectViper := viper.New()
	projectViper.SetConfigFile(projectConfig)
	if err := projectViper.ReadInConfig(); err != nil {
		return fmt.Errorf("reading project config %s: %w", projectConfig, err)
	}
	if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
		return fmt.Errorf("merging project config: %w", err)
	}
	return nil
}

// Validate checks values that would otherwise fail late, mid-deployment.
func (c *Config) Validate() error {
	if c.Orchestrator.URL != "" {
		u, err := url.Parse(c.Orchestrator.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("invalid orchestrator url %q: must be an absolute http(s) url", c.Orchestrator.URL)
		}
	}
	if c.Orchestrator.Timeout <= 0 {
		return fmt.Errorf("invalid orchestrator timeout %s: must be positive", c.Orchestrator.Timeout)
	}
	if c.Install.Delay < 0 {
		return fmt.Errorf("invalid install delay %s: must not be negative", c.Install.Delay)
	}
	return nil
}

// stringList accepts a comma-separated string or a list and returns the
// trimmed, non-empty entries.
func stringList(raw any) []string {
	var items []string
	switch v := raw.(type) {
	case nil:
		return nil
	case string:
		items = strings.Split(v, ",")
	case []string:
		items = v
	case []any:
		for _, item := range v {
			items = append(items, fmt.Sprint(item))
		}
	default:
		items = []string{fmt.Sprint(v)}
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// setDefaults configures default values from Default.
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("orchestrator.url", d.Orchestrator.URL)
	v.SetDefault("orchestrator.timeout", d.Orchestrator.Timeout)

	v.SetDefault("release.id", d.Release.ID)
	v.SetDefault("release.rollback", d.Release.Rollback)

	v.SetDefault("install.command", d.Install.Command)
	v.SetDefault("install.delay", d.Install.Delay)
	v.SetDefault("install.dir", d.Install.Dir)
	v.SetDefault("install.report_results", d.Install.ReportResults)

	v.SetDefault("journal.path", d.Journal.Path)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.file", d.Log.File)
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// getUserConfigDir returns the XDG config directory for orlo-deployer.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "orlo-deployer")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "orlo-deployer")
	}
	return filepath.Join(home, ".config", "orlo-deployer")
}

// findProjectConfig searches for the project config in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ProjectConfigName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Orchestrator: OrchestratorConfig{
			Timeout: orlo.DefaultTimeout,
		},
		Install: InstallConfig{
			Delay: install.DefaultDelay,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Redacted returns a copy with credentials masked, for display.
func (c *Config) Redacted() *Config {
	out := *c
	if out.Orchestrator.Password != "" {
		out.Orchestrator.Password = "****"
	}
	if out.Orchestrator.Token != "" {
		out.Orchestrator.Token = "****"
	}
	return &out
}
