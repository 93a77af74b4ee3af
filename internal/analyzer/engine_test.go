package analyzer

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/logtriage-go/internal/triage"
)

// memoryReader serves log files from memory.
type memoryReader struct {
	files map[string][]string
	reads int
}

func (m *memoryReader) ReadLines(ctx context.Context, path string) ([]string, error) {
	m.reads++
	lines, ok := m.files[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLogNotFound, path)
	}
	return lines, nil
}

func (m *memoryReader) GetSourceInfo(path string) (map[string]interface{}, error) {
	if _, ok := m.files[path]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrLogNotFound, path)
	}
	return map[string]interface{}{"size_bytes": int64(100)}, nil
}

var sampleLog = []string{
	"2026-01-01 10:00:00 INFO Checkout start order_id=1",
	"2026-01-01 10:00:00 ERROR Timeout connecting to redis at 10.0.0.4:6379 request_id=req-aaa",
	"2026-01-01 10:00:05 ERROR Timeout connecting to redis at 10.0.0.4:6379 request_id=req-bbb",
	"2026-01-01 10:07:30 WARN Retry attempt=1",
	"2026-01-01 10:08:00 FATAL kernel oops in scheduler",
	"no level or timestamp here",
}

func newTestEngine() (*Engine, *memoryReader) {
	reader := &memoryReader{files: map[string][]string{
		"app.log":   sampleLog,
		"empty.log": {},
		"plain.log": {"no level or timestamp here"},
	}}
	return NewEngine(reader), reader
}

func TestEngine_AnalyzeLevels(t *testing.T) {
	engine, _ := newTestEngine()

	report, err := engine.AnalyzeLevels(context.Background(), "app.log", 5)
	require.NoError(t, err)

	assert.Equal(t, "app.log", report.LogPath)
	assert.Equal(t, 6, report.TotalLines)
	assert.Equal(t, 5, report.BinMinutes)
	assert.Equal(t, map[triage.Level]int{
		triage.LevelInfo:  1,
		triage.LevelError: 2,
		triage.LevelWarn:  1,
		triage.LevelFatal: 1,
	}, report.LevelCounts)
	assert.Equal(t, map[string]int{
		"2026-01-01 10:00:00": 3,
		"2026-01-01 10:05:00": 2,
	}, report.TimeBins)
}

func TestEngine_AnalyzeLevels_NoSignal(t *testing.T) {
	engine, _ := newTestEngine()

	report, err := engine.AnalyzeLevels(context.Background(), "plain.log", 5)
	require.NoError(t, err)
	assert.Equal(t, 1, report.TotalLines)
	assert.Empty(t, report.LevelCounts)
	assert.Empty(t, report.TimeBins)

	clusters, err := engine.ClusterErrors(context.Background(), "plain.log", triage.DefaultClusterOptions())
	require.NoError(t, err)
	assert.Zero(t, clusters.ExtractedErrorish)
	assert.Empty(t, clusters.Clusters)
}

func TestEngine_ClusterErrors(t *testing.T) {
	engine, _ := newTestEngine()

	report, err := engine.ClusterErrors(context.Background(), "app.log", triage.DefaultClusterOptions())
	require.NoError(t, err)

	assert.Equal(t, 3, report.ExtractedErrorish)
	assert.Equal(t, triage.DefaultThreshold, report.Threshold)
	require.Len(t, report.Clusters, 2)
	assert.Equal(t, 2, report.Clusters[0].Count)
	assert.Equal(t, 1, report.Clusters[0].ID)
	assert.Equal(t, sampleLog[1:3], report.Clusters[0].Examples)
	assert.Equal(t, 2, report.Clusters[1].ID)
}

func TestEngine_EmptyFile(t *testing.T) {
	engine, _ := newTestEngine()

	levels, err := engine.AnalyzeLevels(context.Background(), "empty.log", 5)
	require.NoError(t, err)
	assert.Zero(t, levels.TotalLines)

	clusters, err := engine.ClusterErrors(context.Background(), "empty.log", triage.DefaultClusterOptions())
	require.NoError(t, err)
	assert.NotNil(t, clusters.Clusters)
	assert.Empty(t, clusters.Clusters)
}

func TestEngine_MissingFile(t *testing.T) {
	engine, _ := newTestEngine()

	_, err := engine.AnalyzeLevels(context.Background(), "missing.log", 5)
	assert.ErrorIs(t, err, ErrLogNotFound)

	_, err = engine.ClusterErrors(context.Background(), "missing.log", triage.DefaultClusterOptions())
	assert.ErrorIs(t, err, ErrLogNotFound)

	_, err = engine.Triage(context.Background(), "missing.log", 5, triage.DefaultClusterOptions())
	assert.ErrorIs(t, err, ErrLogNotFound)
}

func TestEngine_InvalidParametersSkipRead(t *testing.T) {
	engine, reader := newTestEngine()

	_, err := engine.AnalyzeLevels(context.Background(), "app.log", 0)
	assert.ErrorIs(t, err, triage.ErrInvalidBinMinutes)

	_, err = engine.ClusterErrors(context.Background(), "app.log", triage.ClusterOptions{Threshold: 0.5})
	assert.ErrorIs(t, err, triage.ErrInvalidOptions)

	assert.Zero(t, reader.reads)
}

func TestEngine_TriageMatchesSeparateCalls(t *testing.T) {
	engine, reader := newTestEngine()
	ctx := context.Background()
	opts := triage.DefaultClusterOptions()

	combined, err := engine.Triage(ctx, "app.log", 5, opts)
	require.NoError(t, err)
	assert.Equal(t, 1, reader.reads)

	levels, err := engine.AnalyzeLevels(ctx, "app.log", 5)
	require.NoError(t, err)
	clusters, err := engine.ClusterErrors(ctx, "app.log", opts)
	require.NoError(t, err)

	assert.Equal(t, "app.log", combined.LogPath)
	assert.Equal(t, levels, combined.Levels)
	assert.Equal(t, clusters, combined.Clusters)
}

func TestEngine_IndependentCalls(t *testing.T) {
	engine, _ := newTestEngine()
	ctx := context.Background()

	first, err := engine.ClusterErrors(ctx, "app.log", triage.DefaultClusterOptions())
	require.NoError(t, err)
	second, err := engine.ClusterErrors(ctx, "app.log", triage.DefaultClusterOptions())
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestEngine_CanceledContext(t *testing.T) {
	engine, _ := newTestEngine()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.AnalyzeLevels(ctx, "app.log", 5)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEngine_SourceInfo(t *testing.T) {
	engine, _ := newTestEngine()

	info, err := engine.SourceInfo("app.log")
	require.NoError(t, err)
	assert.Equal(t, int64(100), info["size_bytes"])

	_, err = engine.SourceInfo("missing.log")
	assert.ErrorIs(t, err, ErrLogNotFound)
}
