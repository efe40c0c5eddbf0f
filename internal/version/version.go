// Package version carries build identification, overridden at release time
// via -ldflags "-X github.com/banshee-data/motion.report/internal/version.Version=...".
package version

var (
	// Version is the motion.report release version.
	Version = "dev"
	// GitSHA is the git commit the binary was built from.
	GitSHA = "unknown"
	// BuildTime is the build timestamp.
	BuildTime = "unknown"
)
