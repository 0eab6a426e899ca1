package storage

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var invalidFilenameChars = regexp.MustCompile(`[^-\p{L}\p{N}_.]`)

// ValidFilename turns an answer value into a safe file name: surrounding
// whitespace is trimmed, spaces become underscores and anything other than
// letters, digits, '-', '_' and '.' is dropped.
func ValidFilename(name string) string {
	name = norm.NFC.String(strings.TrimSpace(name))
	name = strings.ReplaceAll(name, " ", "_")
	return invalidFilenameChars.ReplaceAllString(name, "")
}
