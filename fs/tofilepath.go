package fs

import (
	"fmt"
	"os"

	"github.com/sharedcode/coverage"
)

// ToFilePathFunc formats a base path and UUID into the folder holding the blob file.
type ToFilePathFunc func(basePath string, id coverage.UUID) string

// DefaultToFilePath appends a 4-level folder hierarchy derived from the UUID to basePath,
// which keeps per-directory file counts low on large tile sets.
func DefaultToFilePath(basePath string, id coverage.UUID) string {
	if len(basePath) > 0 && basePath[len(basePath)-1] == os.PathSeparator {
		return fmt.Sprintf("%s%s", basePath, Apply4LevelHierarchy(id))
	}
	return fmt.Sprintf("%s%c%s", basePath, os.PathSeparator, Apply4LevelHierarchy(id))
}

// Apply4LevelHierarchy maps a UUID to a folder path made of its first four hex digits,
// e.g. abcd... becomes a/b/c/d.
func Apply4LevelHierarchy(id coverage.UUID) string {
	s := id.String()
	ps := os.PathSeparator
	return fmt.Sprintf("%c%c%c%c%c%c%c", s[0], ps, s[1], ps, s[2], ps, s[3])
}
