package cliconfig

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"

	"gopkg.in/yaml.v2"

	"github.com/smcgo/smc/shared/util"
)

func getConfigPaths() (string, string, error) {
	// Figure out the config directory and config path
	var configDir string
	if os.Getenv("SMC_CONF") != "" {
		configDir = os.Getenv("SMC_CONF")
	} else if os.Getenv("HOME") != "" && util.PathExists(os.Getenv("HOME")) {
		configDir = filepath.Join(os.Getenv("HOME"), ".config", "smc")
	} else {
		usr, err := user.Current()
		if err != nil {
			return "", "", err
		}

		if util.PathExists(usr.HomeDir) {
			configDir = filepath.Join(usr.HomeDir, ".config", "smc")
		}
	}

	if configDir == "" {
		return "", "", nil
	}

	configPath := os.ExpandEnv(filepath.Join(configDir, "config.yml"))

	return configPath, filepath.Dir(configPath), nil
}

// LoadConfig reads the configuration from the config path; if the path does
// not exist, it returns a default configuration; if the given path is empty
// it tries to determine automatically the configuration file to load.
func LoadConfig(path string) (*Config, error) {
	configDir := filepath.Dir(path)
	if path == "" {
		var err error
		path, configDir, err = getConfigPaths()
		if err != nil {
			return nil, err
		}
	}

	c := NewConfig(configDir, true)
	if path != "" && util.PathExists(path) {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("Unable to read the configuration file: %w", err)
		}

		defer func() { _ = f.Close() }()

		// Decode the YAML document, unknown keys being most likely typos.
		c = NewConfig(configDir, false)
		err = util.YAMLUnmarshalStrict(f, c)
		if err != nil {
			return nil, fmt.Errorf("Unable to decode the configuration: %w", err)
		}

		if c.Remotes == nil {
			c.Remotes = map[string]Remote{}
		}
	}

	// If the environment specifies a remote this takes priority over what
	// is defined in the configuration
	envDefaultRemote := os.Getenv("SMC_REMOTE")
	if len(envDefaultRemote) > 0 {
		c.DefaultRemote = envDefaultRemote
	}

	return c, nil
}

// SaveConfig writes the provided configuration to the config file.
func (c *Config) SaveConfig(path string) error {
	// Create a new copy for the config file
	conf := Config{}
	err := util.DeepCopy(c, &conf)
	if err != nil {
		return fmt.Errorf("Unable to copy the configuration: %w", err)
	}

	err = os.MkdirAll(filepath.Dir(path), 0o700)
	if err != nil {
		return fmt.Errorf("Unable to create the configuration directory: %w", err)
	}

	// Write the new config
	data, err := yaml.Marshal(conf)
	if err != nil {
		return fmt.Errorf("Unable to marshal the configuration: %w", err)
	}

	// API keys are stored in the file.
	err = os.WriteFile(path, data, 0o600)
	if err != nil {
		return fmt.Errorf("Unable to write the configuration: %w", err)
	}

	return nil
}
