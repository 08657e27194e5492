// Package version reports the build of the install service.
package version

// Version is set at build time with
// -ldflags "-X github.com/obot-platform/shopinstall/internal/version.Version=...".
var Version = "dev"

// Get returns the current version string
func Get() string {
	return Version
}
