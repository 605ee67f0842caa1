package fileutils

import (
	"regexp"
	"strings"
)

var (
	smartDoubleQuotes = regexp.MustCompile(`[“”]`)
	smartSingleQuotes = regexp.MustCompile(`[‘’]`)
	invalidChars      = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)
	multiSpace        = regexp.MustCompile(`\s+`)
)

// Sanitize makes a string safe to use as a single path segment on any
// filesystem. Invalid characters are removed rather than replaced so the
// result stays close to the original title.
func Sanitize(name string) string {
	name = smartDoubleQuotes.ReplaceAllString(name, `"`)
	name = smartSingleQuotes.ReplaceAllString(name, `'`)
	name = invalidChars.ReplaceAllString(name, "")
	name = multiSpace.ReplaceAllString(name, " ")

	// Windows rejects trailing dots and spaces.
	name = strings.Trim(name, " .")

	return name
}
