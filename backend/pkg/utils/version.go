package utils

import (
	"runtime/debug"
)

// Version is set at build time with -ldflags "-X thermonode/backend/pkg/utils.Version=v1.2.3".
var Version = "v0.0.0-dev" //nolint:gochecknoglobals // Set by the linker

// GetVersionShort returns "<version> (<commit>)".
func GetVersionShort() string {
	commit, _, _ := getVCSInfo()
	return Version + " (" + commit + ")"
}

// getVCSInfo returns the short commit hash, build time and dirty flag recorded by the Go toolchain.
func getVCSInfo() (string, string, string) {
	commit, buildTime, modified := "unknown", "unknown", "false"

	info, ok := debug.ReadBuildInfo()
	if !ok {
		return commit, buildTime, modified
	}

	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			commit = s.Value
			if len(commit) > 7 {
				commit = commit[:7]
			}
		case "vcs.time":
			buildTime = s.Value
		case "vcs.modified":
			modified = s.Value
		}
	}

	return commit, buildTime, modified
}
