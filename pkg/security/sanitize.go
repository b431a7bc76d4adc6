package security

import (
	"regexp"
	"strings"
	"unicode"
)

const maxFilenameLength = 255

var (
	invalidFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9._\-]`)
	whitespaceRun        = regexp.MustCompile(`\s+`)
)

// SanitizeMessage trims chat input and removes null bytes and control
// characters other than newlines and tabs.
func SanitizeMessage(input string) string {
	input = strings.ReplaceAll(input, "\x00", "")
	return strings.TrimSpace(removeControlCharacters(input))
}

// SanitizeFilename reduces an upload name to a safe single path segment
func SanitizeFilename(filename string) string {
	// Remove path separators
	filename = strings.ReplaceAll(filename, "/", "")
	filename = strings.ReplaceAll(filename, "\\", "")
	filename = strings.ReplaceAll(filename, "..", "")

	filename = invalidFilenameChars.ReplaceAllString(filename, "_")
	if len(filename) > maxFilenameLength {
		filename = filename[:maxFilenameLength]
	}
	if strings.Trim(filename, "._") == "" {
		return "upload"
	}
	return filename
}

// NormalizeWhitespace collapses whitespace runs to one space and trims
func NormalizeWhitespace(input string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(input, " "))
}

// removeControlCharacters removes control characters except newlines and tabs
func removeControlCharacters(input string) string {
	var result strings.Builder
	for _, r := range input {
		if unicode.IsPrint(r) || r == '\n' || r == '\t' {
			result.WriteRune(r)
		}
	}
	return result.String()
}
