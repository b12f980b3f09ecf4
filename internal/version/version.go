// Package version exposes the build version of devfinder.
package version

import (
	"fmt"
	"runtime/debug"
)

// Set at build time:
//
//	go build -ldflags="-X github.com/r58studio/devfinder/internal/version.Version=v1.2.3 \
//	                   -X github.com/r58studio/devfinder/internal/version.Commit=abc123"
//
// Unset values are filled from the VCS stamp in the binary's build info.
var (
	// Version is the semantic version of the application
	Version = ""
	// Commit is the git commit hash
	Commit = ""
)

func init() {
	if Version == "" || Commit == "" {
		info, ok := debug.ReadBuildInfo()
		if ok {
			applyBuildSettings(info.Settings)
		}
	}

	if Version == "" {
		Version = "dev"
	}
	if Commit == "" {
		Commit = "unknown"
	}
}

// applyBuildSettings fills Version/Commit from vcs.* build settings.
func applyBuildSettings(settings []debug.BuildSetting) {
	var revision, modified, vcsTime string
	for _, setting := range settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.modified":
			modified = setting.Value
		case "vcs.time":
			vcsTime = setting.Value
		}
	}

	if Commit == "" && revision != "" {
		if len(revision) > 7 {
			revision = revision[:7]
		}
		Commit = revision
		if modified == "true" {
			Commit += "-dirty"
		}
	}

	if Version == "" && len(vcsTime) >= 10 {
		// vcs.time is RFC3339; keep the date only
		Version = "dev-" + vcsTime[:4] + vcsTime[5:7] + vcsTime[8:10]
	}
}

// Full returns the full version string including commit
func Full() string {
	return fmt.Sprintf("%s (commit: %s)", Version, Commit)
}

// UserAgent is sent on every probe request.
func UserAgent() string {
	return "devfinder/" + Version
}
