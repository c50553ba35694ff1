// Package version holds the release version of the bridge.
package version

// Version is the current release, reported by /api/version and prosimctl.
const Version = "v0.3.1"
