package utils

import (
	"path/filepath"
	"regexp"
	"strings"
)

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9._\s-]`)

// SanitizeFilename cleans filename for safe logging and storage by removing
// dangerous characters and limiting length. It trims spaces and dots, removes
// parent directory references, and filters out non-alphanumeric characters
// except for safe punctuation.
func SanitizeFilename(filename string) string {
	sanitized := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	sanitized = strings.Trim(sanitized, " .")
	sanitized = strings.ReplaceAll(sanitized, "..", "")
	sanitized = unsafeFilenameChars.ReplaceAllString(sanitized, "")
	if len(sanitized) > 255 {
		sanitized = sanitized[:255]
	}
	return sanitized
}

// IsCSVFilename reports whether name carries a .csv extension.
func IsCSVFilename(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".csv")
}
