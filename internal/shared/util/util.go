package util

import (
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// NormalizePatternPath cleans and normalizes paths for glob matching.
func NormalizePatternPath(s string) string {
	trimmed := strings.TrimSpace(strings.ReplaceAll(s, "\\", "/"))
	clean := path.Clean(trimmed)
	if clean == "." {
		return ""
	}
	return strings.TrimPrefix(clean, "./")
}

// IsHidden reports whether a directory entry name is hidden (leading dot).
func IsHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

// MatchSuffix returns the first suffix in suffixes that name ends with.
func MatchSuffix(name string, suffixes []string) (string, bool) {
	for _, s := range suffixes {
		if s != "" && strings.HasSuffix(name, s) {
			return s, true
		}
	}
	return "", false
}

// TrimLastSuffix removes one trailing occurrence of suffix. Names that do not
// end with suffix are returned unchanged.
func TrimLastSuffix(name, suffix string) string {
	if suffix == "" || !strings.HasSuffix(name, suffix) {
		return name
	}
	return name[:len(name)-len(suffix)]
}

// SortedStringKeys returns the map's keys in sorted order.
func SortedStringKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// WriteFileWithDirs creates parent directories (0755) and writes the file with perm.
func WriteFileWithDirs(path string, data []byte, perm fs.FileMode) error {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, perm)
}

// WriteStringWithDirs writes string content with parent directories created.
func WriteStringWithDirs(path, content string, perm fs.FileMode) error {
	return WriteFileWithDirs(path, []byte(content), perm)
}
