// Package version exposes the service's build version information.
//
// Version and BuildTime are set at compile time via -ldflags:
//
//	go build -ldflags "-X github.com/skillsenselab/voiceid/version.Version=1.2.0"
package version

import (
	"runtime/debug"
	"time"
)

var (
	// Version is the release version, "dev" for local builds.
	Version = "dev"
	// BuildTime is the RFC3339 build timestamp.
	BuildTime = ""
)

// Info is the version payload reported by the health endpoint.
type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit,omitempty"`
	BuildTime string `json:"build_time,omitempty"`
	GoVersion string `json:"go_version"`
}

// Get assembles version information, filling gaps from the embedded VCS
// build info when ldflags were not set.
func Get() Info {
	info := Info{
		Version:   Version,
		BuildTime: BuildTime,
	}

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	info.GoVersion = bi.GoVersion

	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			commit := s.Value
			if len(commit) > 7 {
				commit = commit[:7]
			}
			info.GitCommit = commit
		case "vcs.time":
			if info.BuildTime == "" {
				if t, err := time.Parse(time.RFC3339, s.Value); err == nil {
					info.BuildTime = t.Format(time.RFC3339)
				}
			}
		}
	}
	return info
}
