package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Resolved is the configuration after all override layers, together with
// where it came from.
type Resolved struct {
	*Config

	// Path is the config file consulted. FromFile is false when it did
	// not exist and only defaults were used.
	Path     string `json:"config_path"`
	FromFile bool   `json:"from_file"`
}

// Load reads and parses a TOML config file, validates it, and returns the
// resulting Config. Unknown keys are fatal, with "did you mean?"
// suggestions.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	cfg, err := decodeString(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return cfg, nil
}

// LoadOrDefault reads a TOML config file if it exists, otherwise returns a
// Config populated with all default values. found reports which happened.
func LoadOrDefault(path string) (cfg *Config, found bool, err error) {
	if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
		return DefaultConfig(), false, nil
	}

	cfg, err = Load(path)
	if err != nil {
		return nil, true, err
	}

	return cfg, true, nil
}

// ResolvePath picks the config file path: --config, then
// FTPSESSION_CONFIG, then the platform default.
func ResolvePath(env EnvOverrides, cli CLIOverrides) string {
	if cli.ConfigPath != "" {
		return cli.ConfigPath
	}

	if env.ConfigPath != "" {
		return env.ConfigPath
	}

	return DefaultConfigPath()
}

// Resolve loads configuration and applies the override chain:
// defaults -> config file -> environment variables -> CLI flags.
func Resolve(env EnvOverrides, cli CLIOverrides) (*Resolved, error) {
	cfgPath := ResolvePath(env, cli)

	cfg, found, err := LoadOrDefault(cfgPath)
	if err != nil {
		return nil, err
	}

	if env.CredentialsFile != "" {
		cfg.CredentialsFile = env.CredentialsFile
	}

	if env.LockOwner != "" {
		cfg.LockOwner = env.LockOwner
	}

	if cli.CredentialsFile != nil {
		cfg.CredentialsFile = *cli.CredentialsFile
	}

	if cli.LockOwner != nil {
		cfg.LockOwner = *cli.LockOwner
	}

	if cli.Insecure != nil {
		cfg.InsecureSkipVerify = *cli.Insecure
	}

	if cfg.CredentialsFile == "" {
		cfg.CredentialsFile = DefaultCredentialsPath()
	}

	cfg.CredentialsFile = expandTilde(cfg.CredentialsFile)
	cfg.LogFile = expandTilde(cfg.LogFile)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &Resolved{Config: cfg, Path: cfgPath, FromFile: found}, nil
}

// expandTilde replaces a leading "~/" with the user's home directory.
func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	return filepath.Join(home, path[2:])
}

// decodeString parses and validates config text without touching disk.
func decodeString(content string) (*Config, error) {
	cfg := DefaultConfig()

	md, err := toml.Decode(content, cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := checkUnknownKeys(&md); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}
