package cliconfig

import (
	"fmt"

	"github.com/smcgo/smc/internal/ports"
	"github.com/smcgo/smc/shared/util"
)

// LocalRemote is a management server running on the local host.
var LocalRemote = Remote{
	Addr: fmt.Sprintf("http://127.0.0.1:%d", ports.APIDefaultPort),
}

// DefaultRemotes is the list of default remotes.
var DefaultRemotes = map[string]Remote{
	"local": LocalRemote,
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Remotes:       util.CloneMap(DefaultRemotes),
		DefaultRemote: "local",
	}
}
