package version

import (
	"runtime"
	"testing"

	"github.com/matryer/is"
)

func TestGetVersionInfo(t *testing.T) {
	is := is.New(t)
	is.Equal(GetVersionInfo(), "qualifier-bot version dev (commit: unknown, built: unknown, go: "+runtime.Version()+")")
}

func TestGet_LdflagsOverride(t *testing.T) {
	is := is.New(t)

	orig := Get()
	Version, GitCommit, BuildTime = "v1.2.0", "abc123", "2026-01-01T00:00:00Z"
	t.Cleanup(func() {
		Version, GitCommit, BuildTime = orig.Version, orig.GitCommit, orig.BuildTime
	})

	info := Get()
	is.Equal(info.Name, Name)
	is.Equal(info.Version, "v1.2.0")
	is.Equal(info.GitCommit, "abc123")
	is.Equal(info.BuildTime, "2026-01-01T00:00:00Z")
}
