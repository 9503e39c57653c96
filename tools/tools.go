//go:build tools
// +build tools

// Package tools documents development tool dependencies.
// These tools are installed globally via `go install` and are not tracked in go.mod
// since they are development tools, not runtime dependencies.
package tools

// Development tools (install via `go install`):
//
// Air - Live reload for the storefront while editing templates and handlers
//   Install: go install github.com/air-verse/air@v1.63.0
//   Run:     DEV=true AUTH_MODE=mock air --build.cmd "go build -o ./tmp/storefront ./cmd/storefront" --build.bin ./tmp/storefront
//
// mockgen - Regenerates the port mocks in internal/mocks
//   Install: go install go.uber.org/mock/mockgen@v0.6.0
//   Run:     go generate ./internal/mocks
