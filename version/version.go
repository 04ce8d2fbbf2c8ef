// Package version reports what build of studio-indexer is running. Release versions are stamped through ldflags;
// builds from a git checkout fall back to the VCS metadata the Go toolchain embeds.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"time"
)

// Version is the release version, overridable at build time via
// -ldflags "-X github.com/studio-blockchain/studio-indexer/version.Version=...".
var Version = "1.0.0"

// Info describes one build of the indexer binary.
type Info struct {
	// Version is the release version.
	Version string

	// Commit and CommitTime identify the VCS revision the binary was built from, when known.
	Commit     string
	CommitTime time.Time

	// Dirty reports uncommitted changes at build time.
	Dirty bool

	// GoVersion is the toolchain that produced the binary.
	GoVersion string
}

// GetInfo assembles the build information, merging the stamped version with any VCS metadata the toolchain embedded.
func GetInfo() Info {
	info := Info{Version: Version, GoVersion: runtime.Version()}
	build, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	for _, setting := range build.Settings {
		switch setting.Key {
		case "vcs.revision":
			info.Commit = setting.Value
		case "vcs.time":
			if parsed, err := time.Parse(time.RFC3339, setting.Value); err == nil {
				info.CommitTime = parsed
			}
		case "vcs.modified":
			info.Dirty = setting.Value == "true"
		}
	}
	return info
}

// String renders the build information on one line, e.g.
// "studio-indexer 1.0.0 (commit 1a2b3c4, built 2026-08-26, go1.23.0)".
func (i Info) String() string {
	details := make([]string, 0, 3)
	if i.Commit != "" {
		commit := i.Commit
		if len(commit) > 7 {
			commit = commit[:7]
		}
		if i.Dirty {
			commit += "-dirty"
		}
		details = append(details, "commit "+commit)
	}
	if !i.CommitTime.IsZero() {
		details = append(details, "built "+i.CommitTime.Format("2006-01-02"))
	}
	details = append(details, i.GoVersion)
	return fmt.Sprintf("studio-indexer %s (%s)", i.Version, strings.Join(details, ", "))
}
