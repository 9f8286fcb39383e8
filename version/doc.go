// Package version exposes runkit build metadata.
//
//	go build -ldflags "-X github.com/kbukum/runkit/version.Version=1.2.0" ./cmd/runkit
package version
