// Package version carries build metadata injected at link time via
// -ldflags "-X github.com/you/bancho-relay/internal/version.Version=...".
package version

var (
	Version   = "dev"
	Commit    = "none"
	BuildTime = "unknown"
)
