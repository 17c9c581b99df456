// Package version reports how the nescore binary was built.
package version

import (
	"fmt"
	"io"
	"runtime"
	"runtime/debug"
	"strings"
	"time"
)

var (
	// Set at build time with -ldflags "-X nescore/internal/version.Version=..."
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// BuildInfo contains detailed build information
type BuildInfo struct {
	Version    string `json:"version"`
	GitCommit  string `json:"git_commit"`
	BuildTime  string `json:"build_time"`
	GoVersion  string `json:"go_version"`
	Platform   string `json:"platform"`
	Arch       string `json:"arch"`
	Modified   bool   `json:"modified"`
	CGOEnabled bool   `json:"cgo_enabled"`
	Deps       []string
}

// GetBuildInfo merges the linker-set values with the module build info.
// Linker values win.
func GetBuildInfo() BuildInfo {
	bi := BuildInfo{
		Version:   Version,
		GitCommit: GitCommit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS,
		Arch:      runtime.GOARCH,
	}

	info, ok := debug.ReadBuildInfo()
	if !ok {
		return bi
	}
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			if GitCommit == "unknown" {
				bi.GitCommit = setting.Value
			}
		case "vcs.time":
			if BuildTime == "unknown" {
				bi.BuildTime = setting.Value
			}
		case "vcs.modified":
			bi.Modified = setting.Value == "true"
		case "CGO_ENABLED":
			bi.CGOEnabled = setting.Value == "1"
		}
	}
	for _, dep := range info.Deps {
		bi.Deps = append(bi.Deps, dep.Path+" "+dep.Version)
	}
	return bi
}

// ShortCommit returns the first seven characters of the commit
func (bi BuildInfo) ShortCommit() string {
	if len(bi.GitCommit) > 7 {
		return bi.GitCommit[:7]
	}
	return bi.GitCommit
}

// GetVersion returns a simple version string. Development builds carry
// the commit.
func GetVersion() string {
	if Version != "dev" {
		return Version
	}
	bi := GetBuildInfo()
	if bi.GitCommit == "unknown" {
		return Version
	}
	v := "dev-" + bi.ShortCommit()
	if bi.Modified {
		v += "-dirty"
	}
	return v
}

// GetDetailedVersion returns a one-line version string
func GetDetailedVersion() string {
	bi := GetBuildInfo()

	var sb strings.Builder
	fmt.Fprintf(&sb, "nescore version %s", GetVersion())
	if bi.GitCommit != "unknown" {
		fmt.Fprintf(&sb, " (commit %s)", bi.ShortCommit())
	}
	if bi.BuildTime != "unknown" {
		if t, err := time.Parse(time.RFC3339, bi.BuildTime); err == nil {
			fmt.Fprintf(&sb, " built on %s", t.Format("2006-01-02 15:04:05"))
		} else {
			fmt.Fprintf(&sb, " built on %s", bi.BuildTime)
		}
	}
	fmt.Fprintf(&sb, " with %s for %s/%s", bi.GoVersion, bi.Platform, bi.Arch)
	return sb.String()
}

// PrintBuildInfo writes the build information, one field per line
func PrintBuildInfo(w io.Writer) {
	bi := GetBuildInfo()

	fmt.Fprintf(w, "nescore - NES emulator core\n")
	fmt.Fprintf(w, "Version:     %s\n", GetVersion())
	fmt.Fprintf(w, "Git Commit:  %s\n", bi.GitCommit)
	fmt.Fprintf(w, "Build Time:  %s\n", bi.BuildTime)
	fmt.Fprintf(w, "Go Version:  %s\n", bi.GoVersion)
	fmt.Fprintf(w, "Platform:    %s/%s\n", bi.Platform, bi.Arch)
	fmt.Fprintf(w, "CGO Enabled: %t\n", bi.CGOEnabled)
	if len(bi.Deps) > 0 {
		fmt.Fprintf(w, "Modules:\n")
		for _, dep := range bi.Deps {
			fmt.Fprintf(w, "  %s\n", dep)
		}
	}
}
