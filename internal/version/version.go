// Package version holds build information set at link time via -ldflags.
package version

import (
	"fmt"
	"runtime"
)

var (
	// CommitHash is the git commit hash this binary was built from.
	CommitHash = "dev"

	// BuildTime is the UTC build timestamp.
	BuildTime = "unknown"

	// Version is the semantic version, if tagged.
	Version = "dev"
)

// Info is the full set of version and build facts for a running binary.
type Info struct {
	CommitHash string `json:"commit_hash"`
	BuildTime  string `json:"build_time"`
	Version    string `json:"version"`
	GoVersion  string `json:"go_version"`
	Platform   string `json:"platform"`
}

// Get returns the current version information.
func Get() Info {
	return Info{
		CommitHash: CommitHash,
		BuildTime:  BuildTime,
		Version:    Version,
		GoVersion:  runtime.Version(),
		Platform:   fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

// String renders a human-readable one-liner.
func (i Info) String() string {
	if i.Version != "dev" {
		return fmt.Sprintf("collabd %s (commit %s, built %s)", i.Version, i.CommitHash, i.BuildTime)
	}
	return fmt.Sprintf("collabd dev (commit %s, built %s)", i.CommitHash, i.BuildTime)
}
