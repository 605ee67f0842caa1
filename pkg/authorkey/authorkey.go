// Package authorkey normalizes author names into stable cache keys. Two
// spellings of the same author ("Dr. John Smith", "john smith") must map
// to one key so the earliest-date cache merges their books.
package authorkey

import (
	"strings"
)

// Prefixes are honorifics stripped from the front of a name before
// keying.
var Prefixes = []string{
	"Dr.", "Dr",
	"Mr.", "Mr",
	"Mrs.", "Mrs",
	"Ms.", "Ms",
	"Prof.", "Prof",
	"Rev.", "Rev",
	"Sir", "Dame", "Lord", "Lady",
}

// Suffixes are credentials stripped from the end of a name. Generational
// suffixes (Jr., III) are kept since they distinguish people.
var Suffixes = []string{
	"PhD", "Ph.D", "Ph.D.",
	"MD", "M.D", "M.D.",
	"MBA", "M.B.A", "M.B.A.",
	"Esq", "Esq.",
}

// Unknown is the key used when no author could be resolved.
const Unknown = "unknown"

// Key folds an author name to its cache key: honorifics and credentials
// stripped, whitespace collapsed, lower-cased.
func Key(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return Unknown
	}

	for len(fields) > 1 && matches(fields[0], Prefixes) {
		fields = fields[1:]
	}
	for len(fields) > 1 && matches(fields[len(fields)-1], Suffixes) {
		fields = fields[:len(fields)-1]
	}

	key := strings.ToLower(strings.Join(fields, " "))
	key = strings.Trim(key, " ,")
	if key == "" {
		return Unknown
	}
	return key
}

func matches(field string, list []string) bool {
	field = strings.TrimSuffix(field, ",")
	for _, entry := range list {
		if strings.EqualFold(field, entry) {
			return true
		}
	}
	return false
}
