// Package testutil locates fixtures shared by the package and integration tests.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// FindProjectRoot walks up from the caller's source file until it finds go.mod
func FindProjectRoot() (string, error) {
	_, filename, _, ok := runtime.Caller(1)
	if !ok {
		return "", fmt.Errorf("failed to get caller information")
	}
	return findModuleDir(filepath.Dir(filename))
}

func findModuleDir(dir string) (string, error) {
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found above %s", dir)
		}
		dir = parent
	}
}

// FakeClaspScript returns the path of the shell stand-in for the clasp CLI.
// Run it as `sh <path> <verb> ...`; it appends each call to $FAKE_CLASP_LOG and
// exits 1 for the verb named in $FAKE_CLASP_FAIL.
func FakeClaspScript() (string, error) {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return "", fmt.Errorf("failed to get caller information")
	}
	root, err := findModuleDir(filepath.Dir(filename))
	if err != nil {
		return "", err
	}

	path := filepath.Join(root, "integration", "testdata", "fake-clasp.sh")
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("fake clasp script: %w", err)
	}
	return path, nil
}
