package version

import (
	"fmt"
	"runtime"
)

// Version contains the client version number.
var Version = "0.4.0"

// UserAgent contains a string suitable as a user-agent.
var UserAgent = getUserAgent()

func getUserAgent() string {
	return fmt.Sprintf("smc-go/%s (%s; %s)", Version, runtime.GOOS, runtime.GOARCH)
}
