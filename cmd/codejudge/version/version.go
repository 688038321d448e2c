// Package version reports the build version of codejudge
package version

import (
	"embed"
	"runtime/debug"
	"strings"
)

//go:embed version.*
var versions embed.FS

// Version is read from version.txt written by go generate, or from the
// module build info
var Version = "unknown"

func init() {
	if b, err := versions.ReadFile("version.txt"); err == nil {
		Version = strings.TrimSpace(string(b))
		return
	}
	if inf, ok := debug.ReadBuildInfo(); ok {
		Version = inf.Main.Version
	}
}
