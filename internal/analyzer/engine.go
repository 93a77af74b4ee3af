package analyzer

import (
	"context"
	"fmt"

	"github.com/olegiv/logtriage-go/internal/triage"
)

// cancelCheckEvery is how many lines are processed between context checks.
const cancelCheckEvery = 1024

// Engine implements Toolset over a LineReader.
// It holds no per-call state, so one Engine may serve concurrent calls.
type Engine struct {
	reader LineReader
}

var _ Toolset = (*Engine)(nil)

// NewEngine creates an Engine reading log files through reader.
func NewEngine(reader LineReader) *Engine {
	return &Engine{reader: reader}
}

// AnalyzeLevels reads logPath and builds its level and time histogram.
func (e *Engine) AnalyzeLevels(ctx context.Context, logPath string, binMinutes int) (*LevelReport, error) {
	hist, err := triage.NewHistogram(binMinutes)
	if err != nil {
		return nil, err
	}

	lines, err := e.reader.ReadLines(ctx, logPath)
	if err != nil {
		return nil, err
	}

	for i, line := range lines {
		if err := checkContext(ctx, i); err != nil {
			return nil, err
		}
		hist.Add(line)
	}

	return levelReport(logPath, hist), nil
}

// ClusterErrors reads logPath and clusters its error-ish lines.
func (e *Engine) ClusterErrors(ctx context.Context, logPath string, opts triage.ClusterOptions) (*ClusterReport, error) {
	clusterer, err := triage.NewClusterer(opts)
	if err != nil {
		return nil, err
	}

	lines, err := e.reader.ReadLines(ctx, logPath)
	if err != nil {
		return nil, err
	}

	for i, line := range lines {
		if err := checkContext(ctx, i); err != nil {
			return nil, err
		}
		if triage.IsErrorish(line) {
			clusterer.Add(line)
		}
	}

	return clusterReport(logPath, opts, clusterer), nil
}

// Triage reads logPath once and produces both reports.
func (e *Engine) Triage(ctx context.Context, logPath string, binMinutes int, opts triage.ClusterOptions) (*TriageReport, error) {
	hist, err := triage.NewHistogram(binMinutes)
	if err != nil {
		return nil, err
	}
	clusterer, err := triage.NewClusterer(opts)
	if err != nil {
		return nil, err
	}

	lines, err := e.reader.ReadLines(ctx, logPath)
	if err != nil {
		return nil, err
	}

	for i, raw := range lines {
		if err := checkContext(ctx, i); err != nil {
			return nil, err
		}
		line := triage.Classify(raw)
		hist.AddLine(line)
		if triage.IsErrorish(raw) {
			clusterer.Add(raw)
		}
	}

	return &TriageReport{
		LogPath:  logPath,
		Levels:   levelReport(logPath, hist),
		Clusters: clusterReport(logPath, opts, clusterer),
	}, nil
}

// SourceInfo returns metadata about logPath from the underlying reader.
func (e *Engine) SourceInfo(logPath string) (map[string]interface{}, error) {
	return e.reader.GetSourceInfo(logPath)
}

func levelReport(logPath string, hist *triage.Histogram) *LevelReport {
	return &LevelReport{
		LogPath:     logPath,
		TotalLines:  hist.Lines,
		LevelCounts: hist.LevelCounts,
		TimeBins:    hist.TimeBins,
		BinMinutes:  hist.BinMinutes,
	}
}

func clusterReport(logPath string, opts triage.ClusterOptions, c *triage.Clusterer) *ClusterReport {
	return &ClusterReport{
		LogPath:           logPath,
		ExtractedErrorish: c.Lines(),
		Threshold:         opts.Threshold,
		Clusters:          c.Clusters(),
	}
}

func checkContext(ctx context.Context, i int) error {
	if i%cancelCheckEvery != 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("analysis interrupted: %w", err)
	}
	return nil
}
