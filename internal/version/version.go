// Package version holds application identity. Version and Commit are set at build time:
//
//	go build -ldflags "-X github.com/keshon/jukebox/internal/version.Version=v1.2.0"
package version

const (
	AppName        = "Jukebox"
	AppDescription = "Per-server music queue for Discord voice channels."
)

var (
	Version = "dev"
	Commit  = "none"
)

// String returns a human-readable build identifier.
func String() string {
	return AppName + " " + Version + " (" + Commit + ")"
}
