// Package config holds the push configuration. A Config is constructed once
// at startup from the config file, environment and flags, validated with
// Validate, and treated as read-only afterwards. Anything wrong with it
// surfaces before a single network action happens.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"gopkg.in/yaml.v3"

	"github.com/pushbox/pushbox/internal/utils"
)

const (
	// DefaultPort is the SSH port used when the config does not set one.
	DefaultPort = 22

	// DefaultConfigName is the config file pushbox looks for in the
	// working directory.
	DefaultConfigName = ".pushbox.yaml"

	// DefaultLogLevel is used when the config does not set a log level.
	DefaultLogLevel = "info"
)

// SourceMode selects how the rsync source argument is terminated.
type SourceMode string

const (
	// SourceModeContents pushes the contents of SourceDir into TargetDir.
	// The builder appends exactly one trailing separator to the source.
	SourceModeContents SourceMode = "contents"

	// SourceModeDirectory pushes SourceDir itself, nesting it under
	// TargetDir. The builder strips any trailing separator.
	SourceModeDirectory SourceMode = "directory"
)

// Config describes one push: where from, where to, and what to leave behind.
type Config struct {
	SourceDir    string     `yaml:"source_dir"`
	TargetHost   string     `yaml:"target_host"`
	TargetPort   int        `yaml:"target_port,omitempty"`
	TargetDir    string     `yaml:"target_dir"`
	Exclude      []string   `yaml:"exclude,omitempty"`
	SourceMode   SourceMode `yaml:"source_mode,omitempty"`
	Mirror       bool       `yaml:"mirror,omitempty"`
	IdentityFile string     `yaml:"identity_file,omitempty"`
	SSHOptions   []string   `yaml:"ssh_options,omitempty"`
	LogLevel     string     `yaml:"log_level,omitempty"`
	LogFile      string     `yaml:"log_file,omitempty"`

	// DryRun asks rsync to report without transferring. Not persisted.
	DryRun bool `yaml:"-"`

	// Path is where this config was loaded from. Not persisted.
	Path string `yaml:"-"`
}

// Validate normalizes the config and checks every required field. It is
// called once at construction; a non-nil error means the push must not
// start. SourceDir and IdentityFile come back absolute, TargetPort and
// SourceMode come back defaulted, Exclude comes back deduplicated.
func (c *Config) Validate() error {
	if c.SourceDir == "" {
		return fmt.Errorf("config `source_dir` is required")
	}
	src, err := utils.ResolvePath(c.SourceDir)
	if err != nil {
		return fmt.Errorf("config `source_dir`: %w", err)
	}
	if !utils.DirExists(src) {
		return fmt.Errorf("config `source_dir` is not a directory: %s", src)
	}
	if !utils.IsReadable(src) {
		return fmt.Errorf("config `source_dir` is not readable: %s", src)
	}
	c.SourceDir = src

	c.TargetHost = strings.TrimSpace(c.TargetHost)
	if c.TargetHost == "" {
		return fmt.Errorf("config `target_host` is required")
	}
	if strings.ContainsAny(c.TargetHost, " \t") {
		return fmt.Errorf("config `target_host` must not contain whitespace: %q", c.TargetHost)
	}
	if strings.Contains(c.TargetHost, ":") {
		return fmt.Errorf("config `target_host` must not contain ':', set `target_port` instead: %q", c.TargetHost)
	}
	if user, host, ok := strings.Cut(c.TargetHost, "@"); ok && (user == "" || host == "") {
		return fmt.Errorf("config `target_host` must be `host` or `user@host`: %q", c.TargetHost)
	}

	if c.TargetPort == 0 {
		c.TargetPort = DefaultPort
	}
	if c.TargetPort < 1 || c.TargetPort > 65535 {
		return fmt.Errorf("config `target_port` out of range: %d", c.TargetPort)
	}

	if c.TargetDir == "" {
		return fmt.Errorf("config `target_dir` is required")
	}
	if !strings.HasPrefix(c.TargetDir, "/") {
		return fmt.Errorf("config `target_dir` must be an absolute remote path: %q", c.TargetDir)
	}
	// Remote paths are POSIX regardless of the local platform.
	c.TargetDir = path.Clean(c.TargetDir)

	switch c.SourceMode {
	case "":
		c.SourceMode = SourceModeContents
	case SourceModeContents, SourceModeDirectory:
	default:
		return fmt.Errorf("config `source_mode` must be %q or %q: %q", SourceModeContents, SourceModeDirectory, c.SourceMode)
	}

	patterns := mapset.NewSet[string]()
	for _, p := range c.Exclude {
		if p = strings.TrimSpace(p); p != "" {
			patterns.Add(p)
		}
	}
	c.Exclude = mapset.Sorted(patterns)

	if c.IdentityFile != "" {
		ident, err := utils.ResolvePath(c.IdentityFile)
		if err != nil {
			return fmt.Errorf("config `identity_file`: %w", err)
		}
		if !utils.FileExists(ident) {
			return fmt.Errorf("config `identity_file` not found: %s", ident)
		}
		c.IdentityFile = ident
	}

	for _, opt := range c.SSHOptions {
		if !strings.Contains(opt, "=") {
			return fmt.Errorf("config `ssh_options` entries must be `Key=Value`: %q", opt)
		}
	}

	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config `log_level`: %w", err)
	}

	return nil
}

// Remote returns the rsync destination spec, `[user@]host:dir`.
func (c *Config) Remote() string {
	return c.TargetHost + ":" + c.TargetDir
}

// UserHost splits TargetHost into its user and host parts. The user part is
// empty when the host spec carries none.
func (c *Config) UserHost() (user string, host string) {
	if u, h, ok := strings.Cut(c.TargetHost, "@"); ok {
		return u, h
	}
	return "", c.TargetHost
}

// Level returns the configured slog level.
func (c *Config) Level() slog.Level {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}

// Save writes the config as YAML to c.Path.
func (c *Config) Save() error {
	if c.Path == "" {
		return fmt.Errorf("config has no path to save to")
	}
	if err := utils.EnsureParent(c.Path); err != nil {
		return err
	}

	file, err := os.Create(c.Path)
	if err != nil {
		return fmt.Errorf("failed to create file %s: %w", c.Path, err)
	}
	defer file.Close()

	encoder := yaml.NewEncoder(file)
	encoder.SetIndent(2)
	if err := encoder.Encode(c); err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}
	return encoder.Close()
}

// LoadFromFile reads a YAML config. The result is not validated; callers run
// Validate once the remaining sources (env, flags) have been layered in.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	cfg.Path = path
	return &cfg, nil
}
