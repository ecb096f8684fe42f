// Package version exposes the controller's build identity.
package version

import "fmt"

// Set at build time via -ldflags:
//
//	go build -ldflags "-X .../internal/services/version.Version=v1.2.0 \
//	                   -X .../internal/services/version.Commit=abc1234"
var (
	Version = "dev"
	Commit  = "unknown"
)

// String returns the human-readable build identity.
func String() string {
	return fmt.Sprintf("%s (%s)", Version, Commit)
}
