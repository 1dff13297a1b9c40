// Package version carries build metadata, set with -ldflags "-X".
package version

import (
	"fmt"
	"runtime"
)

const Name = "qualifier-bot"

var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// Info is the build metadata in a form suitable for JSON responses.
type Info struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
}

func Get() Info {
	return Info{
		Name:      Name,
		Version:   Version,
		GitCommit: GitCommit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
	}
}

func GetVersionInfo() string {
	return fmt.Sprintf("%s version %s (commit: %s, built: %s, go: %s)",
		Name, Version, GitCommit, BuildTime, runtime.Version())
}
