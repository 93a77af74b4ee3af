package triage

import (
	"github.com/pmezard/go-difflib/difflib"
)

// Matcher scores candidates against a fixed reference using the
// matching-blocks ratio: 2*M/T, where M is the total size of the blocks found
// by repeatedly taking the longest common substring and recursing on both
// sides of it, and T is the combined length of both sequences. Sequences are
// compared code point by code point.
//
// When the reference is 200 code points or longer, code points making up
// more than 1% of it do not seed matches, though they still extend them.
//
// The reference index is built once, so a Matcher per cluster representative
// avoids re-indexing the representative on every comparison. A Matcher is
// not safe for concurrent use.
type Matcher struct {
	sm *difflib.SequenceMatcher
}

// NewMatcher indexes reference for repeated scoring.
func NewMatcher(reference string) *Matcher {
	return &Matcher{sm: difflib.NewMatcher(nil, codePoints(reference))}
}

// Ratio returns the similarity of candidate to the reference, in [0, 1].
// Two empty sequences are identical.
func (m *Matcher) Ratio(candidate string) float64 {
	return m.ratio(codePoints(candidate))
}

func (m *Matcher) ratio(seq []string) float64 {
	m.sm.SetSeq1(seq)
	return m.sm.Ratio()
}

// Similarity returns the matching-blocks ratio of a against b.
func Similarity(a, b string) float64 {
	return NewMatcher(b).Ratio(a)
}

// codePoints splits s into one element per code point.
func codePoints(s string) []string {
	seq := make([]string, 0, len(s))
	for _, r := range s {
		seq = append(seq, string(r))
	}
	return seq
}
