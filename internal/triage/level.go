// Package triage implements the log analysis core: line classification,
// error detection, template normalization, similarity scoring, greedy error
// clustering and the level/time histogram.
//
// Everything in this package is a pure function of its input lines and
// parameters. Accumulators (Histogram, Clusterer) are created per analysis and
// are not safe for concurrent use; independent analyses can run in parallel.
package triage

import (
	"regexp"
	"strings"
)

// Level is an upper-cased level token found in a log line.
type Level string

// Recognized level tokens.
const (
	LevelTrace   Level = "TRACE"
	LevelDebug   Level = "DEBUG"
	LevelInfo    Level = "INFO"
	LevelWarn    Level = "WARN"
	LevelWarning Level = "WARNING"
	LevelError   Level = "ERROR"
	LevelFatal   Level = "FATAL"
)

// LevelOrder is the fixed order in which charts and reports present levels.
var LevelOrder = []Level{
	LevelTrace,
	LevelDebug,
	LevelInfo,
	LevelWarn,
	LevelWarning,
	LevelError,
	LevelFatal,
}

// levelRegex matches a whole-word level token, case-insensitively.
// WARN is listed before WARNING; the word boundary forces the longer
// alternative when the token continues.
var levelRegex = regexp.MustCompile(`(?i)\b(INFO|WARN|WARNING|ERROR|FATAL|DEBUG|TRACE)\b`)

// ParseLevel returns the first level token in line, upper-cased.
func ParseLevel(line string) (Level, bool) {
	m := levelRegex.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	return Level(strings.ToUpper(m[1])), true
}

// OrderedLevels returns the levels present in counts, in LevelOrder.
func OrderedLevels(counts map[Level]int) []Level {
	levels := make([]Level, 0, len(counts))
	for _, lvl := range LevelOrder {
		if _, ok := counts[lvl]; ok {
			levels = append(levels, lvl)
		}
	}
	return levels
}
