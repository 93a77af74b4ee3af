package triage

import (
	"regexp"
	"strings"
	"time"
)

// TimestampLayout is the layout of extracted timestamps and of histogram bucket keys.
const TimestampLayout = "2006-01-02 15:04:05"

var timestampRegex = regexp.MustCompile(`\d{4}-\d{2}-\d{2}[ T]\d{2}:\d{2}:\d{2}`)

// LogLine is the classification of one physical line.
type LogLine struct {
	Raw          string
	Level        Level // empty when the line carries no level token
	Timestamp    time.Time
	HasTimestamp bool
}

// HasLevel reports whether a level token was found.
func (l LogLine) HasLevel() bool {
	return l.Level != ""
}

// Classify extracts the level and timestamp of a raw line.
func Classify(raw string) LogLine {
	line := LogLine{Raw: raw}
	if lvl, ok := ParseLevel(raw); ok {
		line.Level = lvl
	}
	if ts, ok := ParseTimestamp(raw); ok {
		line.Timestamp = ts
		line.HasTimestamp = true
	}
	return line
}

// ParseTimestamp parses the first "YYYY-MM-DD HH:MM:SS" (or 'T'-separated)
// substring of line. Only the first candidate is considered: when it does not
// form a valid calendar time the line has no timestamp.
func ParseTimestamp(line string) (time.Time, bool) {
	match := timestampRegex.FindString(line)
	if match == "" {
		return time.Time{}, false
	}

	ts, err := time.Parse(TimestampLayout, strings.Replace(match, "T", " ", 1))
	if err != nil {
		return time.Time{}, false
	}
	// Year zero is accepted by time.Parse but is not a calendar year.
	if ts.Year() < 1 {
		return time.Time{}, false
	}
	return ts, true
}
