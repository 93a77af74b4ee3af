package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/olegiv/logtriage-go/internal/analyzer"
	"github.com/olegiv/logtriage-go/internal/triage"
)

func sampleLevels() *analyzer.LevelReport {
	return &analyzer.LevelReport{
		LogPath:    "/var/log/app.log",
		TotalLines: 6,
		LevelCounts: map[triage.Level]int{
			triage.LevelInfo:  1,
			triage.LevelError: 3,
		},
		TimeBins: map[string]int{
			"2026-01-01 10:00:00": 3,
			"2026-01-01 10:05:00": 1,
		},
		BinMinutes: 5,
	}
}

func sampleClusters() *analyzer.ClusterReport {
	return &analyzer.ClusterReport{
		LogPath:           "/var/log/app.log",
		ExtractedErrorish: 3,
		Threshold:         0.82,
		Clusters: []triage.Cluster{
			{
				ID:       1,
				Rep:      "<TS> <LEVEL> Timeout connecting to redis",
				Count:    2,
				Examples: []string{"2026-01-01 10:00:00 ERROR Timeout connecting to redis"},
			},
		},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input   string
		want    Format
		wantErr bool
	}{
		{"text", FormatText, false},
		{"json", FormatJSON, false},
		{"YAML", FormatYAML, false},
		{"xml", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseFormat(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNew(t *testing.T) {
	var buf bytes.Buffer
	for _, f := range []Format{FormatText, FormatJSON, FormatYAML} {
		r, err := New(f, &buf)
		require.NoError(t, err)
		assert.NotNil(t, r)
	}

	_, err := New("xml", &buf)
	assert.Error(t, err)
}

func TestJSONRenderer_Schema(t *testing.T) {
	var buf bytes.Buffer
	r := NewJSONRenderer(&buf)

	require.NoError(t, r.RenderLevels(sampleLevels()))

	var levels map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &levels))
	for _, key := range []string{"log_path", "total_lines", "level_counts", "time_bins", "bin_minutes"} {
		assert.Contains(t, levels, key)
	}
	assert.Equal(t, float64(3), levels["level_counts"].(map[string]interface{})["ERROR"])

	buf.Reset()
	require.NoError(t, r.RenderClusters(sampleClusters()))

	var clusters map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &clusters))
	for _, key := range []string{"log_path", "extracted_errorish", "threshold", "clusters"} {
		assert.Contains(t, clusters, key)
	}
	first := clusters["clusters"].([]interface{})[0].(map[string]interface{})
	for _, key := range []string{"cluster_id", "rep", "count", "examples"} {
		assert.Contains(t, first, key)
	}
}

func TestJSONRenderer_EmptyClustersIsArray(t *testing.T) {
	var buf bytes.Buffer
	rep := &analyzer.ClusterReport{LogPath: "a.log", Threshold: 0.82, Clusters: []triage.Cluster{}}

	require.NoError(t, NewJSONRenderer(&buf).RenderClusters(rep))
	assert.Contains(t, buf.String(), `"clusters": []`)
}

func TestYAMLRenderer(t *testing.T) {
	var buf bytes.Buffer
	r := NewYAMLRenderer(&buf)

	require.NoError(t, r.RenderTriage(&analyzer.TriageReport{
		LogPath:  "/var/log/app.log",
		Levels:   sampleLevels(),
		Clusters: sampleClusters(),
	}))

	var decoded struct {
		LogPath string `yaml:"log_path"`
		Levels  struct {
			TotalLines  int            `yaml:"total_lines"`
			LevelCounts map[string]int `yaml:"level_counts"`
		} `yaml:"levels"`
		Clusters struct {
			Clusters []struct {
				ID    int `yaml:"cluster_id"`
				Count int `yaml:"count"`
			} `yaml:"clusters"`
		} `yaml:"clusters"`
	}
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "/var/log/app.log", decoded.LogPath)
	assert.Equal(t, 6, decoded.Levels.TotalLines)
	assert.Equal(t, 3, decoded.Levels.LevelCounts["ERROR"])
	require.Len(t, decoded.Clusters.Clusters, 1)
	assert.Equal(t, 1, decoded.Clusters.Clusters[0].ID)
	assert.Equal(t, 2, decoded.Clusters.Clusters[0].Count)
}

func TestTextRenderer_Levels(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewTextRenderer(&buf).RenderLevels(sampleLevels()))

	out := buf.String()
	assert.Contains(t, out, "=== LEVEL COUNTS ===")
	assert.Contains(t, out, "total lines: 6")
	assert.Contains(t, out, "75.00%")
	assert.Contains(t, out, "25.00%")
	assert.Contains(t, out, "=== EVENT VOLUME BY TIME BIN ===")
	assert.Contains(t, out, "2026-01-01 10:00:00  count=3")

	// ERROR has the higher count and is listed first.
	assert.Less(t, strings.Index(out, "ERROR"), strings.Index(out, "INFO"))
	// The busiest bin comes first.
	assert.Less(t, strings.Index(out, "10:00:00  count"), strings.Index(out, "10:05:00  count"))
}

func TestTextRenderer_NoSignal(t *testing.T) {
	var buf bytes.Buffer
	r := NewTextRenderer(&buf)

	require.NoError(t, r.RenderLevels(&analyzer.LevelReport{
		LogPath:     "a.log",
		TotalLines:  1,
		LevelCounts: map[triage.Level]int{},
		TimeBins:    map[string]int{},
		BinMinutes:  5,
	}))
	require.NoError(t, r.RenderClusters(&analyzer.ClusterReport{LogPath: "a.log", Clusters: []triage.Cluster{}}))

	out := buf.String()
	assert.Contains(t, out, "No level tags found")
	assert.NotContains(t, out, "EVENT VOLUME")
	assert.Contains(t, out, "No error-ish lines found")
}

func TestTextRenderer_Clusters(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewTextRenderer(&buf).RenderClusters(sampleClusters()))

	out := buf.String()
	assert.Contains(t, out, "[1] count=2")
	assert.Contains(t, out, "rep: <TS> <LEVEL> Timeout connecting to redis")
	assert.Contains(t, out, "  - 2026-01-01 10:00:00 ERROR Timeout connecting to redis")
}

func TestTextRenderer_ResultFallsBackToJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewTextRenderer(&buf).RenderResult(map[string]int{"runs": 2}))
	assert.JSONEq(t, `{"runs": 2}`, buf.String())
}
