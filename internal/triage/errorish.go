package triage

import "strings"

// errorHints are lower-case substrings marking a line as error-ish even
// without an ERROR/FATAL level token (stack traces, panics, assertions).
var errorHints = []string{
	"error",
	"exception",
	"traceback",
	"fatal",
	"panic",
	"failed",
	"failure",
	"assert",
	"segfault",
}

// IsErrorish reports whether line should enter error clustering.
func IsErrorish(line string) bool {
	if lvl, ok := ParseLevel(line); ok && (lvl == LevelError || lvl == LevelFatal) {
		return true
	}

	lower := strings.ToLower(line)
	for _, hint := range errorHints {
		if strings.Contains(lower, hint) {
			return true
		}
	}
	return false
}
