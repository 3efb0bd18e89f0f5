package cliconfig

import (
	"errors"
)

// ErrNoConfigDir is returned when no configuration directory could be found.
var ErrNoConfigDir = errors.New("No configuration directory available")

// ErrNoDefaultRemote is returned when no remote was given and none is set as default.
var ErrNoDefaultRemote = errors.New("No default remote configured, use \"smc remote switch\"")
