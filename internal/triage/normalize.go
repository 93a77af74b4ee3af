package triage

import (
	"regexp"
	"strings"
)

// Placeholder tokens written by Normalize.
const (
	TokenTimestamp = "<TS>"
	TokenLevel     = "<LEVEL>"
	TokenHex       = "<HEX>"
	TokenNumber    = "<NUM>"
	TokenURL       = "<URL>"
	TokenPath      = "<PATH>"
)

var (
	hexRegex        = regexp.MustCompile(`\b0x[0-9a-fA-F]+\b`)
	numberRegex     = regexp.MustCompile(`\b\d+\b`)
	urlRegex        = regexp.MustCompile(`https?://[^\t\n\v\f\r ]+`)
	pathRegex       = regexp.MustCompile(`(/[A-Za-z0-9._-]+)+`)
	whitespaceRegex = regexp.MustCompile(`[\t\n\v\f\r ]+`)
)

// Normalize rewrites a line into the template used as its clustering key.
// Masks are applied in a fixed order, each on the output of the previous one:
// the first timestamp, level tokens, hex literals, digit runs, URLs, paths,
// and finally whitespace is collapsed. The timestamp goes first so its digits
// are never split into number tokens.
func Normalize(line string) string {
	s := line
	if loc := timestampRegex.FindStringIndex(s); loc != nil {
		s = s[:loc[0]] + TokenTimestamp + s[loc[1]:]
	}
	s = levelRegex.ReplaceAllLiteralString(s, TokenLevel)
	s = hexRegex.ReplaceAllLiteralString(s, TokenHex)
	s = numberRegex.ReplaceAllLiteralString(s, TokenNumber)
	s = urlRegex.ReplaceAllLiteralString(s, TokenURL)
	s = pathRegex.ReplaceAllLiteralString(s, TokenPath)
	s = whitespaceRegex.ReplaceAllLiteralString(s, " ")
	return strings.TrimSpace(s)
}
