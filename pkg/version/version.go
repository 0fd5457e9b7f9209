// Package version carries the tool version for diagnostics and the update
// command. Release builds override Version through the linker:
//
//	go build -ldflags "-X github.com/objtools/storctl/pkg/version.Version=..."
package version

var Version = "0.9.0-dev"
