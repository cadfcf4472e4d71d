package version

import (
	"fmt"
	"runtime"
)

var (
	// Version is the current application version
	Version = "dev"
	// GitSHA is the git commit SHA
	GitSHA = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

// String formats the build information for the --version flag.
func String() string {
	return fmt.Sprintf("%s (%s, built %s) %s/%s", Version, GitSHA, BuildTime, runtime.GOOS, runtime.GOARCH)
}
