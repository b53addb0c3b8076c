// Package version provides build version information for Doc2Talk.
package version

// Version is the current Doc2Talk version.
// Overridden at build time via -ldflags "-X .../pkg/version.Version=...".
var Version = "0.4.0"

// Commit is the git commit hash the binary was built from.
var Commit = "unknown"

// BuildDate is the date the binary was built.
var BuildDate = "unknown"
