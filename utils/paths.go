package utils

import (
	"strings"
)

// GetRelativePrefixToRootFromPath returns one "../" per directory segment of
// a generated page path. The path is expected to be forward-slashed with no
// leading slash.
func GetRelativePrefixToRootFromPath(path string) string {
	segments := strings.Split(path, "/")
	return strings.Repeat("../", len(segments)-1)
}
