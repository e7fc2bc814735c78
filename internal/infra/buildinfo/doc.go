// Package buildinfo holds version metadata injected at build time via
// ldflags, shared by the raptodb-server and raptodb-cli binaries'
// --version output.
//
//	go build -ldflags "-X .../internal/infra/buildinfo.Version=1.0.0"
package buildinfo
