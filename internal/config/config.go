// Package config loads the repository configuration from .sv.toml with
// environment overrides. Auto-loading tolerates a missing or malformed
// file and falls back to defaults; an explicit load surfaces parse errors.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/lherron/sv/internal/domain"
)

// FileName is the config file name at the repository root
const FileName = ".sv.toml"

// Config represents the repository configuration. It is read-only after
// load; commands never write it back.
type Config struct {
	Base    string        `toml:"base"`
	Actor   ActorConfig   `toml:"actor"`
	Leases  LeaseConfig   `toml:"leases"`
	Protect ProtectConfig `toml:"protect"`
	Tasks   TaskConfig    `toml:"tasks"`
}

// ActorConfig names the fallback actor
type ActorConfig struct {
	Default string `toml:"default"`
}

// LeaseConfig holds lease defaults and compatibility switches
type LeaseConfig struct {
	Defaults LeaseDefaults `toml:"defaults"`
	Compat   LeaseCompat   `toml:"compat"`
}

// LeaseDefaults are applied when lease acquire omits the field
type LeaseDefaults struct {
	Strength string          `toml:"strength"`
	Intent   string          `toml:"intent"`
	TTL      domain.Duration `toml:"ttl"`
}

// LeaseCompat relaxes or tightens overlap checking
type LeaseCompat struct {
	AllowOverlapCooperative     bool `toml:"allow_overlap_cooperative"`
	RequireFlagForStrongOverlap bool `toml:"require_flag_for_strong_overlap"`
}

// ProtectConfig configures the protected-path policy
type ProtectConfig struct {
	Mode  string   `toml:"mode"`
	Paths []string `toml:"paths"`
}

// TaskConfig configures the task event store
type TaskConfig struct {
	// SharedLog is the repo-relative path of the team-visible event log
	SharedLog string `toml:"shared_log"`
}

// Default returns the configuration used when no file is present
func Default() *Config {
	return &Config{
		Base: "main",
		Actor: ActorConfig{
			Default: "unknown",
		},
		Leases: LeaseConfig{
			Defaults: LeaseDefaults{
				Strength: string(domain.LeaseStrengthCooperative),
			},
			Compat: LeaseCompat{
				AllowOverlapCooperative:     true,
				RequireFlagForStrongOverlap: true,
			},
		},
		Protect: ProtectConfig{
			Mode: string(domain.ProtectModeGuard),
		},
		Tasks: TaskConfig{
			SharedLog: ".sv/tasks.shared.jsonl",
		},
	}
}

// Load auto-loads configuration for the repository rooted at root.
// A missing or malformed .sv.toml falls back to defaults; unknown fields
// are ignored. .env.local (found by walking up from the working
// directory) is loaded before environment lookups.
func Load(root string) *Config {
	if envPath := findEnvLocal(); envPath != "" {
		_ = godotenv.Load(envPath)
	}

	cfg := Default()
	path := filepath.Join(root, FileName)
	if _, err := decodeInto(path, cfg); err != nil {
		// Auto-load never fails; a broken file behaves like no file.
		return Default()
	}
	return cfg
}

// LoadStrict loads the config file at path and propagates parse errors
func LoadStrict(path string) (*Config, error) {
	cfg := Default()
	ok, err := decodeInto(path, cfg)
	if err != nil {
		return nil, &domain.InvalidConfigError{Path: path, Err: err}
	}
	if !ok {
		return nil, &domain.InvalidConfigError{Path: path, Err: os.ErrNotExist}
	}
	return cfg, nil
}

// decodeInto decodes path over cfg. Returns false when the file does not
// exist, an error when it exists but cannot be parsed or holds invalid
// enum values.
func decodeInto(path string, cfg *Config) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return true, err
	}
	if err := validate(cfg); err != nil {
		return true, err
	}
	return true, nil
}

func validate(cfg *Config) error {
	if cfg.Base == "" {
		return fmt.Errorf("base branch must not be empty")
	}
	if _, err := domain.ValidateProtectMode(cfg.Protect.Mode); err != nil {
		return err
	}
	if _, err := domain.ValidateStrength(cfg.Leases.Defaults.Strength); err != nil {
		return err
	}
	return nil
}

// ActorEnv is the environment variable overriding the actor
const ActorEnv = "SV_ACTOR"

// ProjectEnv defaults the project filter for task queries
const ProjectEnv = "SV_PROJECT"

// LogEnv configures the slog level filter
const LogEnv = "SV_LOG"

// maxLogEnvLen guards against pathological filter values
const maxLogEnvLen = 4096

// EnvActor returns the actor override from the environment, if any
func EnvActor() string {
	return os.Getenv(ActorEnv)
}

// EnvProject returns the default project filter from the environment
func EnvProject() string {
	return os.Getenv(ProjectEnv)
}

// EnvLogLevel returns the log filter from the environment. Oversized
// values are ignored.
func EnvLogLevel() string {
	v := os.Getenv(LogEnv)
	if len(v) > maxLogEnvLen {
		return ""
	}
	return v
}

// findEnvLocal searches for .env.local starting from cwd and walking up
// parent directories. Stops at the user's home directory or the fs root.
func findEnvLocal() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = ""
	} else {
		homeDir = filepath.Clean(homeDir)
	}

	dir := filepath.Clean(cwd)
	for {
		envPath := filepath.Join(dir, ".env.local")
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
		if dir == homeDir {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}
