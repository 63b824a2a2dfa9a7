// Package version tells which build of doodlejam is running.
package version

import "runtime/debug"

// Version can be set at build time:
// go build -ldflags "-X github.com/doodlejam/doodlejam/version.Version=$(git describe --dirty)"
var Version string

var Hash = func() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	var revision string
	modified := false
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.modified":
			modified = setting.Value == "true"
		}
	}
	if len(revision) > 7 {
		revision = revision[:7]
	}
	if revision != "" && modified {
		return revision + "-dirty"
	}
	return revision
}()

// VersionOrHash is Version when set, the commit hash otherwise, or "dev".
var VersionOrHash = func() string {
	switch {
	case Version != "":
		return Version
	case Hash != "":
		return Hash
	}
	return "dev"
}()
