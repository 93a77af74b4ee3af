package triage

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// ErrInvalidBinMinutes is returned for a non-positive bucket size.
var ErrInvalidBinMinutes = errors.New("bin_minutes must be a positive integer")

// DefaultBinMinutes is the default histogram bucket size.
const DefaultBinMinutes = 5

// Histogram counts lines per level and per time bucket.
//
// Bucket starts are minute-aligned within the hour: floor(minute/bin)*bin.
// Sizes that do not divide 60 are accepted; their last bucket in each hour is
// shorter and buckets restart at minute 0 of every hour.
type Histogram struct {
	BinMinutes  int
	Lines       int
	LevelCounts map[Level]int
	TimeBins    map[string]int
}

// Bin is one time bucket of a histogram.
type Bin struct {
	Start string `json:"start" yaml:"start"`
	Count int    `json:"count" yaml:"count"`
}

// NewHistogram returns an empty histogram with the given bucket size.
func NewHistogram(binMinutes int) (*Histogram, error) {
	if binMinutes <= 0 {
		return nil, fmt.Errorf("%w (got: %d)", ErrInvalidBinMinutes, binMinutes)
	}
	return &Histogram{
		BinMinutes:  binMinutes,
		LevelCounts: make(map[Level]int),
		TimeBins:    make(map[string]int),
	}, nil
}

// Add classifies raw and counts it.
func (h *Histogram) Add(raw string) {
	h.AddLine(Classify(raw))
}

// AddLine counts an already classified line. Lines without a level or
// timestamp still count towards Lines.
func (h *Histogram) AddLine(line LogLine) {
	h.Lines++
	if line.HasLevel() {
		h.LevelCounts[line.Level]++
	}
	if line.HasTimestamp {
		h.TimeBins[BucketStart(line.Timestamp, h.BinMinutes).Format(TimestampLayout)]++
	}
}

// Merge adds the counts of other, built over a different range of lines.
func (h *Histogram) Merge(other *Histogram) error {
	if other.BinMinutes != h.BinMinutes {
		return fmt.Errorf("cannot merge histograms with different bin sizes (%d and %d)", h.BinMinutes, other.BinMinutes)
	}
	h.Lines += other.Lines
	for lvl, n := range other.LevelCounts {
		h.LevelCounts[lvl] += n
	}
	for start, n := range other.TimeBins {
		h.TimeBins[start] += n
	}
	return nil
}

// BucketStart floors ts to its bucket: minute rounded down to a multiple of
// binMinutes, seconds zeroed.
func BucketStart(ts time.Time, binMinutes int) time.Time {
	minute := (ts.Minute() / binMinutes) * binMinutes
	return time.Date(ts.Year(), ts.Month(), ts.Day(), ts.Hour(), minute, 0, 0, ts.Location())
}

// SortBins converts a bin map into a chronological slice.
func SortBins(bins map[string]int) []Bin {
	out := make([]Bin, 0, len(bins))
	for start, count := range bins {
		out = append(out, Bin{Start: start, Count: count})
	}
	// Keys share one fixed-width layout, so lexical order is chronological.
	sort.Slice(out, func(i, j int) bool {
		return out[i].Start < out[j].Start
	})
	return out
}

// TopBins returns the n bins of bins with the highest counts.
func TopBins(bins map[string]int, n int) []Bin {
	out := SortBins(bins)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Count > out[j].Count
	})
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
