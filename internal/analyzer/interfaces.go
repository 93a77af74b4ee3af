// Package analyzer exposes the triage engine as a fixed set of named tools.
// Toolset is the capability surface; Engine is its only implementation and
// Registry maps tool names to it for name-based dispatch.
package analyzer

import (
	"context"
	"errors"

	"github.com/olegiv/logtriage-go/internal/triage"
)

// ErrLogNotFound is returned when the requested log file does not exist.
// It is reported before any processing starts.
var ErrLogNotFound = errors.New("log file not found")

// LineReader reads the lines of a log source.
type LineReader interface {
	// ReadLines returns the lines of the file at path, in order, without
	// line terminators. Implementations may cap the number of lines.
	ReadLines(ctx context.Context, path string) ([]string, error)

	// GetSourceInfo returns metadata about the log source.
	// Common keys: size_bytes, size_mb, modified, age_hours
	GetSourceInfo(path string) (map[string]interface{}, error)
}

// Toolset is the fixed set of operations the engine offers.
type Toolset interface {
	// AnalyzeLevels counts lines per level and per time bucket.
	AnalyzeLevels(ctx context.Context, logPath string, binMinutes int) (*LevelReport, error)

	// ClusterErrors groups error-ish lines by template similarity.
	ClusterErrors(ctx context.Context, logPath string, opts triage.ClusterOptions) (*ClusterReport, error)
}

// LevelReport is the result of AnalyzeLevels.
type LevelReport struct {
	LogPath     string               `json:"log_path" yaml:"log_path"`
	TotalLines  int                  `json:"total_lines" yaml:"total_lines"`
	LevelCounts map[triage.Level]int `json:"level_counts" yaml:"level_counts"`
	TimeBins    map[string]int       `json:"time_bins" yaml:"time_bins"`
	BinMinutes  int                  `json:"bin_minutes" yaml:"bin_minutes"`
}

// ClusterReport is the result of ClusterErrors.
type ClusterReport struct {
	LogPath           string           `json:"log_path" yaml:"log_path"`
	ExtractedErrorish int              `json:"extracted_errorish" yaml:"extracted_errorish"`
	Threshold         float64          `json:"threshold" yaml:"threshold"`
	Clusters          []triage.Cluster `json:"clusters" yaml:"clusters"`
}

// TriageReport holds both results computed over one read of a file.
type TriageReport struct {
	LogPath  string         `json:"log_path" yaml:"log_path"`
	Levels   *LevelReport   `json:"levels" yaml:"levels"`
	Clusters *ClusterReport `json:"clusters" yaml:"clusters"`
}
