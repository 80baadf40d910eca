package version

import "fmt"

var (
	// Version is the current application version
	Version = "dev"
	// GitSHA is the git commit SHA
	GitSHA = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

// String renders the build stamp for -version output.
func String() string {
	return fmt.Sprintf("overflight %s (%s, built %s)", Version, GitSHA, BuildTime)
}

// UserAgent is sent on outbound feed requests.
func UserAgent() string {
	return "overflight.report/" + Version
}
