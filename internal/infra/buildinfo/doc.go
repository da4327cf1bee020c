// Package buildinfo exposes the amrsnap version.
//
// Values are injected with ldflags:
//
//	go build -ldflags "-X github.com/yndnr/amrsnap/internal/infra/buildinfo.Version=v0.3.0"
//
// Without ldflags, Commit and BuildTime fall back to the VCS stamp the Go
// toolchain embeds.
package buildinfo
