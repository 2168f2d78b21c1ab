// Package version provides build metadata for the workerkit binary.
//
// Overview:
//   - Responsibility: Version, commit and build time, injected with -ldflags
//   - Key Types: Info
//   - Concurrency Model: Read-only after init, safe for concurrent use
//   - Error Semantics: No errors; unknown values stay at their defaults
//   - Performance Notes: Build info is read once per call
//
// Usage:
//
//	go build -ldflags "-X go.eggybyte.com/egg/workerkit/internal/version.Version=v0.1.0" ./cmd/workerkit
//	fmt.Println(version.String())
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Version is the release version.
var Version = "dev"

// Commit is the git commit hash. When not injected, the VCS revision stamped
// by the Go toolchain is used.
var Commit = ""

// BuildTime is the build timestamp in RFC3339 format.
var BuildTime = "unknown"

// Info is the machine-readable form of the build metadata.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// Get returns the build metadata.
func Get() Info {
	return Info{
		Version:   Version,
		Commit:    commit(),
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// String returns the one-line version string:
// workerkit version v0.1.0 (commit 4a9b2c1, built 2026-01-01T12:00:00Z)
func String() string {
	info := Get()
	return fmt.Sprintf("workerkit version %s (commit %s, built %s)", info.Version, info.Commit, info.BuildTime)
}

// Full returns the version string followed by the Go toolchain and platform.
func Full() string {
	info := Get()
	return fmt.Sprintf("%s\ngo version %s (%s)", String(), info.GoVersion, info.Platform)
}

func commit() string {
	if Commit != "" {
		return Commit
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			if s.Key == "vcs.revision" && len(s.Value) >= 7 {
				return s.Value[:7]
			}
		}
	}
	return "none"
}
