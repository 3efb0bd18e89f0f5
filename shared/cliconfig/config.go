package cliconfig

import (
	"fmt"
	"os"
	"path/filepath"
)

// Config holds settings to be used by the command line client.
type Config struct {
	// Remotes is the list of management servers known to the client.
	Remotes map[string]Remote `yaml:"remotes"`

	// DefaultRemote holds the remote to use when none is given.
	DefaultRemote string `yaml:"default-remote"`

	// ConfigDir is the directory holding the configuration and server certificates.
	ConfigDir string `yaml:"-"`

	// UserAgent is sent on every request.
	UserAgent string `yaml:"-"`

	// PromptAPIKey is called when a remote has no API key configured.
	PromptAPIKey func(remote string) (string, error) `yaml:"-"`
}

// NewConfig returns a Config, optionally with default values.
func NewConfig(configDir string, defaults bool) *Config {
	config := &Config{ConfigDir: configDir}
	if defaults {
		config = DefaultConfig()
		config.ConfigDir = configDir
	}

	if config.Remotes == nil {
		config.Remotes = map[string]Remote{}
	}

	return config
}

// ConfigPath returns a path relative to the configuration directory.
func (c *Config) ConfigPath(paths ...string) string {
	path := []string{c.ConfigDir}
	path = append(path, paths...)

	return filepath.Join(path...)
}

// ServerCertPath returns the path of the pinned certificate for a remote.
func (c *Config) ServerCertPath(remote string) string {
	return c.ConfigPath("servercerts", fmt.Sprintf("%s.crt", remote))
}

// ensureDir creates a directory under the configuration directory if missing.
func (c *Config) ensureDir(paths ...string) error {
	if c.ConfigDir == "" {
		return ErrNoConfigDir
	}

	err := os.MkdirAll(c.ConfigPath(paths...), 0o700)
	if err != nil {
		return fmt.Errorf("Unable to create %q: %w", c.ConfigPath(paths...), err)
	}

	return nil
}
