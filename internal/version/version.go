// Package version reports the parari release.
package version

import (
	_ "embed"
	"fmt"
	"runtime"
	"strings"
)

//go:embed VERSION
var versionContent string

// Commit is set at build time with -ldflags "-X .../version.Commit=<sha>".
var Commit string

// Get returns the release version from the embedded VERSION file.
func Get() string {
	return strings.TrimSpace(versionContent)
}

// Full returns the version line printed by `parari version`.
func Full() string {
	v := "parari " + Get()
	if Commit != "" {
		v += " (" + Commit + ")"
	}
	return fmt.Sprintf("%s %s/%s", v, runtime.GOOS, runtime.GOARCH)
}
