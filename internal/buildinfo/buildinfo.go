// Package buildinfo holds version information set at link time:
//
//	go build -ldflags "-X github.com/soypat/workbox/internal/buildinfo.Version=v1.0.0"
package buildinfo

import (
	"fmt"
	"runtime/debug"
)

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// String describes the running binary.
func String() string {
	version, commit := Version, Commit
	if info, ok := debug.ReadBuildInfo(); ok {
		if version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
			version = info.Main.Version
		}
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" && commit == "none" {
				commit = s.Value
			}
		}
	}
	return fmt.Sprintf("workbox %s (commit=%s, date=%s)", version, commit, Date)
}
