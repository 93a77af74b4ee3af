// Package report renders triage results as terminal text, JSON or YAML.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/olegiv/logtriage-go/internal/analyzer"
)

// Format selects a renderer.
type Format string

// Supported output formats.
const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ValidFormats returns the accepted format names.
func ValidFormats() []string {
	return []string{string(FormatText), string(FormatJSON), string(FormatYAML)}
}

// ParseFormat converts a string to Format.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case FormatText:
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	case FormatYAML:
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("invalid output format: %q (valid formats: %v)", s, ValidFormats())
	}
}

// Renderer writes tool results to an output stream.
type Renderer interface {
	RenderLevels(r *analyzer.LevelReport) error
	RenderClusters(r *analyzer.ClusterReport) error
	RenderTriage(r *analyzer.TriageReport) error
	// RenderResult writes the result of a dispatched tool call.
	RenderResult(v interface{}) error
}

// New returns the renderer for format writing to w.
func New(format Format, w io.Writer) (Renderer, error) {
	switch format {
	case FormatText:
		return NewTextRenderer(w), nil
	case FormatJSON:
		return NewJSONRenderer(w), nil
	case FormatYAML:
		return NewYAMLRenderer(w), nil
	default:
		return nil, fmt.Errorf("invalid output format: %q (valid formats: %v)", format, ValidFormats())
	}
}

// JSONRenderer writes each result as one indented JSON document.
type JSONRenderer struct {
	enc *json.Encoder
}

// NewJSONRenderer returns a Renderer that writes JSON to w.
func NewJSONRenderer(w io.Writer) *JSONRenderer {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return &JSONRenderer{enc: enc}
}

func (r *JSONRenderer) RenderLevels(rep *analyzer.LevelReport) error {
	return r.enc.Encode(rep)
}

func (r *JSONRenderer) RenderClusters(rep *analyzer.ClusterReport) error {
	return r.enc.Encode(rep)
}

func (r *JSONRenderer) RenderTriage(rep *analyzer.TriageReport) error {
	return r.enc.Encode(rep)
}

func (r *JSONRenderer) RenderResult(v interface{}) error {
	return r.enc.Encode(v)
}

// YAMLRenderer writes each result as a YAML document.
type YAMLRenderer struct {
	w io.Writer
}

// NewYAMLRenderer returns a Renderer that writes YAML to w.
func NewYAMLRenderer(w io.Writer) *YAMLRenderer {
	return &YAMLRenderer{w: w}
}

func (r *YAMLRenderer) RenderLevels(rep *analyzer.LevelReport) error {
	return r.encode(rep)
}

func (r *YAMLRenderer) RenderClusters(rep *analyzer.ClusterReport) error {
	return r.encode(rep)
}

func (r *YAMLRenderer) RenderTriage(rep *analyzer.TriageReport) error {
	return r.encode(rep)
}

func (r *YAMLRenderer) RenderResult(v interface{}) error {
	return r.encode(v)
}

func (r *YAMLRenderer) encode(v interface{}) error {
	enc := yaml.NewEncoder(r.w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode yaml: %w", err)
	}
	return enc.Close()
}
