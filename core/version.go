package core

import (
	_ "embed"
	"strings"
)

//go:embed version
var registryVersion string

// Version is the anstore release, checked against marker version requirements.
func Version() string {
	return strings.TrimSpace(registryVersion)
}
