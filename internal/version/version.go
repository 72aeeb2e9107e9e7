// Package version carries build identification, overridden at link
// time via -ldflags "-X".
package version

var (
	// Version is the current simulator version
	Version = "dev"
	// GitSHA is the git commit SHA
	GitSHA = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

// String formats the full build identification.
func String() string {
	return Version + " (" + GitSHA + ", " + BuildTime + ")"
}
