package auth

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// MarkerFile is created by `clasp clone`/`clasp create` in a linked project
const MarkerFile = ".clasp.json"

// Status describes whether clasp is ready to talk to a remote project
type Status struct {
	// Linked is true when the project root contains the marker file
	Linked bool
	// Authenticated is true when the credentials file holds a default token
	Authenticated bool
}

// Ready reports whether both preconditions hold
func (s Status) Ready() bool {
	return s.Linked && s.Authenticated
}

// Guidance returns the hint shown when a precondition is missing
func (s Status) Guidance() string {
	switch {
	case !s.Linked:
		return fmt.Sprintf("No %s file found. Project may not be initialized; run \"clasp clone\" or \"clasp create\" first.", MarkerFile)
	case !s.Authenticated:
		return "Authentication tokens not found. Please run \"clasp login\" first."
	}
	return ""
}

// credentials mirrors the part of ~/.clasprc.json we care about
type credentials struct {
	Tokens map[string]json.RawMessage `json:"tokens"`
}

// Check inspects the project root and credentials file. Missing or malformed
// files are reported through Status, never as errors.
func Check(projectRoot, credentialsPath string, logger *slog.Logger) Status {
	var st Status

	if _, err := os.Stat(filepath.Join(projectRoot, MarkerFile)); err == nil {
		st.Linked = true
	} else if !os.IsNotExist(err) {
		logger.Warn("failed to check project marker", "path", filepath.Join(projectRoot, MarkerFile), "error", err)
	}

	ok, err := HasDefaultToken(credentialsPath)
	if err != nil {
		logger.Warn("error checking tokens", "path", credentialsPath, "error", err)
	}
	st.Authenticated = ok

	return st
}

// HasDefaultToken reports whether the credentials file contains a non-empty
// tokens.default entry. A missing file is not an error.
func HasDefaultToken(path string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read credentials file: %w", err)
	}

	var creds credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return false, fmt.Errorf("failed to parse credentials file: %w", err)
	}

	raw, ok := creds.Tokens["default"]
	if !ok {
		return false, nil
	}
	return truthy(raw), nil
}

// truthy treats null, false, 0 and "" as absent
func truthy(raw json.RawMessage) bool {
	v := bytes.TrimSpace(raw)
	switch string(v) {
	case "", "null", "false", "0", `""`:
		return false
	}
	return true
}
