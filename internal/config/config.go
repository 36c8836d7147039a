// Package config handles loading, saving, and resolving the RepoSentry
// machine configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"
)

const (
	// LocalConfigFilename is the per-directory RepoSentry config file.
	LocalConfigFilename = ".reposentry.yaml"
	// ConfigAPIVersion is the current config schema apiVersion.
	ConfigAPIVersion = "reposentry.dev/v1beta1"
	// ConfigKind is the current config schema kind.
	ConfigKind = "RepoSentryConfig"

	// EnvConfigOverride names the environment variable consulted before the
	// platform config directory.
	EnvConfigOverride = "REPOSENTRY_CONFIG"
)

// AuthMethod selects how GitHub credentials are acquired by the external
// discovery collaborator. The engine itself never manages credentials.
type AuthMethod string

const (
	AuthAuto   AuthMethod = "auto"
	AuthGHCLI  AuthMethod = "gh_cli"
	AuthToken  AuthMethod = "token"
)

// SyncStrategy selects the Repo State Machine's S_Branch behavior.
type SyncStrategy string

const (
	StrategySafePull          SyncStrategy = "safe-pull"
	StrategyFetchOnly         SyncStrategy = "fetch-only"
	StrategyInteractive       SyncStrategy = "interactive"
	StrategyMostRecentBranch  SyncStrategy = "most-recent-branch"
)

// ConflictResolution selects how organization/name path collisions are
// resolved when separate_org_dirs is disabled.
type ConflictResolution string

const (
	ConflictPrefixOrg ConflictResolution = "prefix-org"
	ConflictSuffix    ConflictResolution = "suffix"
	ConflictSkip      ConflictResolution = "skip"
)

// AgeFilter is one of the recognized max_age buckets.
type AgeFilter string

const (
	AgeNone    AgeFilter = ""
	Age1Month  AgeFilter = "1month"
	Age3Month  AgeFilter = "3month"
	Age6Month  AgeFilter = "6month"
)

// Duration returns the filter cutoff as a time.Duration, or 0 for AgeNone.
func (a AgeFilter) Duration() time.Duration {
	switch a {
	case Age1Month:
		return 30 * 24 * time.Hour
	case Age3Month:
		return 90 * 24 * time.Hour
	case Age6Month:
		return 180 * 24 * time.Hour
	default:
		return 0
	}
}

// SizeFilter is one of the recognized max_size buckets.
type SizeFilter string

const (
	SizeNone  SizeFilter = ""
	Size100MB SizeFilter = "100MB"
	Size1GB   SizeFilter = "1GB"
)

// Bytes returns the filter cutoff in bytes, or 0 for SizeNone.
func (s SizeFilter) Bytes() int64 {
	switch s {
	case Size100MB:
		return 100 * 1024 * 1024
	case Size1GB:
		return 1024 * 1024 * 1024
	default:
		return 0
	}
}

// Filters holds the repository inclusion filters from spec §6.
type Filters struct {
	MaxAge  AgeFilter  `yaml:"max_age,omitempty"`
	MaxSize SizeFilter `yaml:"max_size,omitempty"`
}

// GitHub holds the github discovery provider's configuration.
type GitHub struct {
	AuthMethod           AuthMethod `yaml:"auth_method"`
	Username             string     `yaml:"username,omitempty"`
	IncludeOrganizations []string   `yaml:"include_organizations,omitempty"`
	IncludeForks         bool       `yaml:"include_forks"`
	ExcludePatterns      []string   `yaml:"exclude_patterns,omitempty"`
}

// Sync holds the orchestrator and state-machine configuration.
type Sync struct {
	Strategy        SyncStrategy `yaml:"strategy"`
	MaxParallel     int          `yaml:"max_parallel"`
	TimeoutSeconds  int          `yaml:"timeout"`
	AutoStash       bool         `yaml:"auto_stash"`
	FastForwardOnly bool         `yaml:"fast_forward_only"`
}

// Daemon holds the background-loop configuration. Process daemonization is
// left to an external service manager; internal/daemon writes and removes
// PIDFile around its interval loop.
type Daemon struct {
	Enabled  bool   `yaml:"enabled"`
	Interval string `yaml:"interval"` // Ns|Nm|Nh|Nd
	PIDFile  string `yaml:"pid_file,omitempty"`
	LogFile  string `yaml:"log_file,omitempty"`
}

// IntervalDuration parses Daemon.Interval ("30m", "2h", "1d", ...).
func (d Daemon) IntervalDuration() (time.Duration, error) {
	v := strings.TrimSpace(d.Interval)
	if v == "" {
		return 0, errors.New("daemon.interval is empty")
	}
	unit := v[len(v)-1]
	numPart := v[:len(v)-1]
	var n int
	if _, err := fmt.Sscanf(numPart, "%d", &n); err != nil {
		return 0, fmt.Errorf("invalid daemon.interval %q: %w", d.Interval, err)
	}
	switch unit {
	case 's':
		return time.Duration(n) * time.Second, nil
	case 'm':
		return time.Duration(n) * time.Minute, nil
	case 'h':
		return time.Duration(n) * time.Hour, nil
	case 'd':
		return time.Duration(n) * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("invalid daemon.interval unit in %q", d.Interval)
	}
}

// Organization holds local layout policy for discovered repositories.
type Organization struct {
	SeparateOrgDirs    bool               `yaml:"separate_org_dirs"`
	ConflictResolution ConflictResolution `yaml:"conflict_resolution"`
}

// Advanced holds the clone/verify/cache knobs from spec §6.
type Advanced struct {
	PreserveTimestamps bool `yaml:"preserve_timestamps"`
	VerifyClone        bool `yaml:"verify_clone"`
	CleanupOnError     bool `yaml:"cleanup_on_error"`
	CacheDurationSec   int  `yaml:"cache_duration,omitempty"` // unused by core
}

// Config represents the machine-level RepoSentry configuration.
type Config struct {
	APIVersion     string       `yaml:"apiVersion"`
	Kind           string       `yaml:"kind"`
	BaseDirectory  string       `yaml:"base_directory"`
	Filters        Filters      `yaml:"filters"`
	GitHub         GitHub       `yaml:"github"`
	Sync           Sync         `yaml:"sync"`
	Daemon         Daemon       `yaml:"daemon"`
	Organization   Organization `yaml:"organization"`
	Advanced       Advanced     `yaml:"advanced"`
}

// DefaultConfig returns a Config with the defaults listed in spec §6.
func DefaultConfig() Config {
	return Config{
		APIVersion: ConfigAPIVersion,
		Kind:       ConfigKind,
		GitHub: GitHub{
			AuthMethod: AuthAuto,
		},
		Sync: Sync{
			Strategy:        StrategySafePull,
			MaxParallel:     4,
			TimeoutSeconds:  300,
			AutoStash:       false,
			FastForwardOnly: true,
		},
		Organization: Organization{
			SeparateOrgDirs:    true,
			ConflictResolution: ConflictSkip,
		},
		Advanced: Advanced{
			PreserveTimestamps: true,
			VerifyClone:        true,
			CleanupOnError:     true,
		},
	}
}

// ExpandBaseDirectory expands "~" and environment variables in BaseDirectory.
func (c Config) ExpandBaseDirectory() (string, error) {
	return expandPath(c.BaseDirectory)
}

func expandPath(p string) (string, error) {
	p = os.ExpandEnv(p)
	if strings.HasPrefix(p, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		p = filepath.Join(home, strings.TrimPrefix(p, "~"))
	}
	return p, nil
}

// ConfigDir returns the platform-appropriate config directory path.
// It checks, in order: the override parameter, REPOSENTRY_CONFIG env var,
// and finally os.UserConfigDir()/reposentry.
func ConfigDir(override string) (string, error) {
	if override != "" {
		if isConfigFilePath(override) {
			return filepath.Dir(override), nil
		}
		return override, nil
	}

	if env := os.Getenv(EnvConfigOverride); env != "" {
		if isConfigFilePath(env) {
			return filepath.Dir(env), nil
		}
		return env, nil
	}

	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "reposentry"), nil
}

// ConfigPath resolves the config file path from override/env/defaults.
func ConfigPath(override string) (string, error) {
	if override != "" {
		if isConfigFilePath(override) {
			return override, nil
		}
		return filepath.Join(override, "config.yaml"), nil
	}

	if env := os.Getenv(EnvConfigOverride); env != "" {
		if isConfigFilePath(env) {
			return env, nil
		}
		return filepath.Join(env, "config.yaml"), nil
	}

	dir, err := ConfigDir("")
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// InitConfigPath resolves where "reposentry init" should write config.
// Order: explicit override, REPOSENTRY_CONFIG, then local dotfile in cwd.
func InitConfigPath(override, cwd string) (string, error) {
	if override != "" || os.Getenv(EnvConfigOverride) != "" {
		return ConfigPath(override)
	}

	if strings.TrimSpace(cwd) == "" {
		var err error
		cwd, err = os.Getwd()
		if err != nil {
			return "", err
		}
	}
	return filepath.Join(cwd, LocalConfigFilename), nil
}

// ResolveConfigPath resolves config for runtime commands.
// Order: explicit override, REPOSENTRY_CONFIG, nearest local dotfile in
// cwd/parents, then global platform config path.
func ResolveConfigPath(override, cwd string) (string, error) {
	if override != "" || os.Getenv(EnvConfigOverride) != "" {
		return ConfigPath(override)
	}

	if strings.TrimSpace(cwd) == "" {
		var err error
		cwd, err = os.Getwd()
		if err != nil {
			return "", err
		}
	}

	localPath, err := FindNearestConfigPath(cwd)
	if err != nil {
		return "", err
	}
	if localPath != "" {
		return localPath, nil
	}

	return ConfigPath("")
}

// FindNearestConfigPath searches cwd and each parent directory for
// .reposentry.yaml. It returns an empty string when no local config file is
// found.
func FindNearestConfigPath(cwd string) (string, error) {
	dir := cwd
	for {
		candidate := filepath.Join(dir, LocalConfigFilename)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		} else if err != nil && !os.IsNotExist(err) {
			return "", err
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

// Load reads the config file from the given path. Keys absent from the file
// keep their DefaultConfig values; sync.max_parallel, sync.timeout,
// sync.strategy, github.auth_method and organization.conflict_resolution
// also fall back to their defaults when set to a zero value.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyConfigGVK(&cfg)
	if err := validateConfigGVK(&cfg); err != nil {
		return nil, err
	}

	def := DefaultConfig()
	if cfg.Sync.MaxParallel == 0 {
		cfg.Sync.MaxParallel = def.Sync.MaxParallel
	}
	if cfg.Sync.TimeoutSeconds == 0 {
		cfg.Sync.TimeoutSeconds = def.Sync.TimeoutSeconds
	}
	if cfg.Sync.Strategy == "" {
		cfg.Sync.Strategy = def.Sync.Strategy
	}
	if cfg.GitHub.AuthMethod == "" {
		cfg.GitHub.AuthMethod = def.GitHub.AuthMethod
	}
	if cfg.Organization.ConflictResolution == "" {
		cfg.Organization.ConflictResolution = def.Organization.ConflictResolution
	}

	return &cfg, nil
}

// Save writes the config to the given path.
func Save(cfg *Config, path string) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	applyConfigGVK(cfg)
	if err := validateConfigGVK(cfg); err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// LastUpdated is a helper to get "now" in a consistent format for timestamps.
func LastUpdated() string {
	return time.Now().Format(time.RFC3339)
}

// DataDir returns the platform-appropriate data directory holding the
// State Store database: $XDG_DATA_HOME/reposentry, falling back to
// ~/.local/share/reposentry.
func DataDir() (string, error) {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "reposentry"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "share", "reposentry"), nil
}

// StatePath returns the absolute path to the State Store database file.
func StatePath() (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "state.db"), nil
}

// EnsureDataDir creates DataDir() if it does not already exist.
func EnsureDataDir() (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create data directory %s: %w", dir, err)
	}
	return dir, nil
}

func isConfigFilePath(path string) bool {
	lower := strings.ToLower(path)
	if strings.HasSuffix(lower, "config.yaml") || strings.HasSuffix(lower, "config.yml") {
		return true
	}
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func applyConfigGVK(cfg *Config) {
	if cfg == nil {
		return
	}
	if strings.TrimSpace(cfg.APIVersion) == "" {
		cfg.APIVersion = ConfigAPIVersion
	}
	if strings.TrimSpace(cfg.Kind) == "" {
		cfg.Kind = ConfigKind
	}
}

func validateConfigGVK(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	if cfg.APIVersion != ConfigAPIVersion {
		return fmt.Errorf("unsupported config apiVersion %q (expected %q)", cfg.APIVersion, ConfigAPIVersion)
	}
	if cfg.Kind != ConfigKind {
		return fmt.Errorf("unsupported config kind %q (expected %q)", cfg.Kind, ConfigKind)
	}
	return nil
}
