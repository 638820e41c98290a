// Package util holds small process-level helpers.
package util

import (
	"os"
	"strings"
)

// EnvOrDefault returns the trimmed environment variable value, or fallback
// when it is unset or blank.
func EnvOrDefault(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}
