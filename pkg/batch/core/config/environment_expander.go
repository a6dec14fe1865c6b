package config

import (
	"os"
	"strings"
)

// EnvironmentExpander expands environment variable placeholders within configuration data.
type EnvironmentExpander interface {
	// Expand replaces ${VAR}, ${VAR:-default} and $VAR placeholders in input.
	Expand(input []byte) ([]byte, error)
}

// OsEnvironmentExpander implements EnvironmentExpander on the process environment.
// Unset variables without a default expand to the empty string.
type OsEnvironmentExpander struct{}

// NewOsEnvironmentExpander creates and returns a new instance of OsEnvironmentExpander.
func NewOsEnvironmentExpander() *OsEnvironmentExpander {
	return &OsEnvironmentExpander{}
}

// Expand implements EnvironmentExpander. The returned error is always nil.
func (e *OsEnvironmentExpander) Expand(input []byte) ([]byte, error) {
	return []byte(os.Expand(string(input), lookupWithDefault)), nil
}

// lookupWithDefault resolves "NAME" or "NAME:-default"; the default applies when NAME is unset or empty.
func lookupWithDefault(placeholder string) string {
	name, fallback, hasDefault := strings.Cut(placeholder, ":-")
	if v := os.Getenv(name); v != "" || !hasDefault {
		return v
	}
	return fallback
}
