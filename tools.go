//go:build tools

// Package tools pins the versions of development tooling used by the Makefile
// and CI. It is never compiled into the binaries.
package tools

import (
	_ "github.com/golangci/golangci-lint/cmd/golangci-lint"
	_ "golang.org/x/vuln/cmd/govulncheck"
)
