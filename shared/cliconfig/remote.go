package cliconfig

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	smc "github.com/smcgo/smc/client"
	"github.com/smcgo/smc/shared/util"
)

// Remote holds details for communication with a management server.
type Remote struct {
	Addr               string `yaml:"addr"`
	APIKey             string `yaml:"api_key,omitempty"`
	APIVersion         string `yaml:"api_version,omitempty"`
	Domain             string `yaml:"domain,omitempty"`
	InsecureSkipVerify bool   `yaml:"insecure,omitempty"`
	Timeout            int    `yaml:"timeout,omitempty"`
}

// ParseRemote splits remote and object.
func (c *Config) ParseRemote(raw string) (string, string, error) {
	result := strings.SplitN(raw, ":", 2)
	if len(result) == 1 {
		return c.DefaultRemote, raw, nil
	}

	_, ok := c.Remotes[result[0]]
	if !ok {
		// Hrefs and names may contain ":" of their own.
		if strings.Contains(raw, "://") || strings.Contains(result[0], " ") {
			return c.DefaultRemote, raw, nil
		}

		return "", "", fmt.Errorf("The remote \"%s\" doesn't exist", result[0])
	}

	return result[0], result[1], nil
}

// GetServer logs into the named remote.
func (c *Config) GetServer(ctx context.Context, name string) (*smc.ProtocolSMC, error) {
	if name == "" {
		name = c.DefaultRemote
	}

	if name == "" {
		return nil, ErrNoDefaultRemote
	}

	remote, ok := c.Remotes[name]
	if !ok {
		return nil, fmt.Errorf("The remote \"%s\" doesn't exist", name)
	}

	args, err := c.getConnectionArgs(name)
	if err != nil {
		return nil, err
	}

	return smc.ConnectWithContext(ctx, remote.Addr, args)
}

// getConnectionArgs builds the connection arguments for a remote, filling the
// API key from $SMC_API_KEY or the prompt helper when the remote has none.
func (c *Config) getConnectionArgs(name string) (*smc.ConnectionArgs, error) {
	remote := c.Remotes[name]
	args := smc.ConnectionArgs{
		APIKey:             remote.APIKey,
		APIVersion:         remote.APIVersion,
		Domain:             remote.Domain,
		InsecureSkipVerify: remote.InsecureSkipVerify,
		UserAgent:          c.UserAgent,
	}

	if remote.Timeout > 0 {
		args.Timeout = time.Duration(remote.Timeout) * time.Second
	}

	if args.APIKey == "" {
		args.APIKey = os.Getenv("SMC_API_KEY")
	}

	if args.APIKey == "" {
		if c.PromptAPIKey == nil {
			return nil, fmt.Errorf("No API key configured for remote %q", name)
		}

		key, err := c.PromptAPIKey(name)
		if err != nil {
			return nil, err
		}

		args.APIKey = key
	}

	// Stop here if no TLS involved
	if !strings.HasPrefix(remote.Addr, "https://") {
		return &args, nil
	}

	// Server certificate
	if util.PathExists(c.ServerCertPath(name)) {
		content, err := os.ReadFile(c.ServerCertPath(name))
		if err != nil {
			return nil, err
		}

		args.TLSServerCert = string(content)
	}

	return &args, nil
}
