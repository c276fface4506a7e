// Package version exposes the build version embedded from the VERSION file.
package version

import (
	_ "embed"
	"strings"
)

//go:embed VERSION
var versionContent string

// Get returns the embedded version without surrounding whitespace.
func Get() string {
	return strings.TrimSpace(versionContent)
}

// UserAgent is sent with every orchestrator request.
func UserAgent() string {
	return "orlo-deployer/" + Get()
}
