// Package config loads the optional pman configuration file and resolves
// which vault file a command operates on.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nieksand/pman/pkg/crypto"
)

// Environment variables consulted by Load and ResolveVaultPath.
const (
	EnvConfig = "PMAN_CONFIG"
	EnvVault  = "PMAN_VAULT"
)

// FileName is the name of the config file inside the user config directory.
const FileName = "config.yaml"

// DefaultStaleAfterDays is how long a secret may go without rotation
// before the check command reports it.
const DefaultStaleAfterDays = 365

// Config is the contents of config.yaml.
type Config struct {
	Version        int    `yaml:"version"`
	Vault          string `yaml:"vault"`
	KDFIterations  int    `yaml:"kdf_iterations"`
	StaleAfterDays int    `yaml:"stale_after_days"`
}

var (
	// ErrConfigInsecure is returned when the config file is writable by other users
	ErrConfigInsecure = errors.New("config: file has insecure permissions")
	// ErrConfigNotOwnedByUser is returned when the config file belongs to another user
	ErrConfigNotOwnedByUser = errors.New("config: file not owned by current user")
	// ErrNoVaultPath is returned when no vault was given by flag, environment or config
	ErrNoVaultPath = errors.New("config: no vault path given (use --vault, " + EnvVault + " or the config file)")
)

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Version:        1,
		KDFIterations:  crypto.DefaultIterations,
		StaleAfterDays: DefaultStaleAfterDays,
	}
}

// DefaultPath returns $PMAN_CONFIG, or config.yaml under the user config directory.
func DefaultPath() (string, error) {
	if p := os.Getenv(EnvConfig); p != "" {
		return p, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("config: failed to locate config directory: %w", err)
	}
	return filepath.Join(dir, "pman", FileName), nil
}

// Load reads the config file at path, or at DefaultPath when path is empty.
// A missing file yields Default(). Fields absent from the file keep their
// defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("config: failed to open %s: %w", path, err)
	}
	defer f.Close()

	// fstat the open descriptor so the checked file is the one we read
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("config: failed to stat %s: %w", path, err)
	}
	if perm := info.Mode().Perm(); perm&0022 != 0 {
		return nil, fmt.Errorf("%w: %s is %o (must not be group or world writable)", ErrConfigInsecure, path, perm)
	}
	if err := checkFileOwnership(info); err != nil {
		return nil, err
	}

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(content, cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the config values.
func (c *Config) Validate() error {
	if c.Version != 1 {
		return fmt.Errorf("config: unsupported version: %d", c.Version)
	}
	if c.KDFIterations < crypto.MinIterations {
		return fmt.Errorf("config: kdf_iterations %d is below the minimum of %d", c.KDFIterations, crypto.MinIterations)
	}
	if c.StaleAfterDays < 0 {
		return fmt.Errorf("config: stale_after_days must not be negative: %d", c.StaleAfterDays)
	}
	return nil
}

// StaleAfter returns the stale threshold as a duration. Zero disables the check.
func (c *Config) StaleAfter() time.Duration {
	return time.Duration(c.StaleAfterDays) * 24 * time.Hour
}

// ResolveVaultPath picks the vault path: the flag value first, then
// $PMAN_VAULT, then the config file. A leading ~/ is expanded.
func (c *Config) ResolveVaultPath(flagValue string) (string, error) {
	path := flagValue
	if path == "" {
		path = os.Getenv(EnvVault)
	}
	if path == "" {
		path = c.Vault
	}
	if path == "" {
		return "", ErrNoVaultPath
	}
	return ExpandHome(path)
}

// ExpandHome replaces a leading ~ or ~/ with the user's home directory.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("config: failed to expand %s: %w", path, err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
