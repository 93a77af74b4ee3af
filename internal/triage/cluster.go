package triage

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrInvalidOptions is returned for out-of-range clustering options.
var ErrInvalidOptions = errors.New("invalid cluster options")

// Clustering defaults.
const (
	DefaultThreshold    = 0.82
	DefaultTopK         = 10
	DefaultExamplesEach = 3
)

// ClusterOptions controls greedy error clustering.
type ClusterOptions struct {
	// Threshold is the minimum similarity for a line to join a cluster.
	Threshold float64
	// TopK caps the number of clusters returned.
	TopK int
	// ExamplesEach caps the raw example lines kept per cluster.
	ExamplesEach int
}

// DefaultClusterOptions returns threshold 0.82, top 10 clusters, 3 examples each.
func DefaultClusterOptions() ClusterOptions {
	return ClusterOptions{
		Threshold:    DefaultThreshold,
		TopK:         DefaultTopK,
		ExamplesEach: DefaultExamplesEach,
	}
}

// Validate checks option ranges. A threshold of 0 is allowed and merges
// every line after the first into an existing cluster.
func (o ClusterOptions) Validate() error {
	if math.IsNaN(o.Threshold) || o.Threshold < 0 || o.Threshold > 1 {
		return fmt.Errorf("%w: threshold must be between 0 and 1 (got: %v)", ErrInvalidOptions, o.Threshold)
	}
	if o.TopK < 1 {
		return fmt.Errorf("%w: top_k must be at least 1 (got: %d)", ErrInvalidOptions, o.TopK)
	}
	if o.ExamplesEach < 0 {
		return fmt.Errorf("%w: examples_each must not be negative (got: %d)", ErrInvalidOptions, o.ExamplesEach)
	}
	return nil
}

// Cluster is a group of error lines sharing a similar template.
type Cluster struct {
	ID       int      `json:"cluster_id" yaml:"cluster_id"`
	Rep      string   `json:"rep" yaml:"rep"`
	Count    int      `json:"count" yaml:"count"`
	Examples []string `json:"examples" yaml:"examples"`

	matcher *Matcher
}

// Clusterer assigns lines to clusters in a single online pass.
//
// Each line is compared with the representative of every existing cluster,
// so a run costs O(E*C) comparisons for E lines and C clusters, O(E^2) in the
// worst case. Assignment depends on input order; splitting the input and
// merging partial results would produce different clusters.
type Clusterer struct {
	opts     ClusterOptions
	clusters []*Cluster
	lines    int
}

// NewClusterer validates opts and returns an empty Clusterer.
func NewClusterer(opts ClusterOptions) (*Clusterer, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Clusterer{opts: opts}, nil
}

// Add folds raw into the best matching cluster or starts a new one, and
// returns the ID of the cluster it landed in.
func (c *Clusterer) Add(raw string) int {
	c.lines++
	template := Normalize(raw)

	seq := codePoints(template)
	best := -1
	bestScore := 0.0
	for i, cl := range c.clusters {
		score := cl.matcher.ratio(seq)
		if best < 0 || score > bestScore {
			best, bestScore = i, score
		}
	}

	if best >= 0 && bestScore >= c.opts.Threshold {
		cl := c.clusters[best]
		cl.Count++
		if len(cl.Examples) < c.opts.ExamplesEach {
			cl.Examples = append(cl.Examples, raw)
		}
		return cl.ID
	}

	cl := &Cluster{
		ID:       len(c.clusters) + 1,
		Rep:      template,
		Count:    1,
		Examples: make([]string, 0, c.opts.ExamplesEach),
		matcher:  NewMatcher(template),
	}
	if c.opts.ExamplesEach > 0 {
		cl.Examples = append(cl.Examples, raw)
	}
	c.clusters = append(c.clusters, cl)
	return cl.ID
}

// Lines returns the number of lines added so far.
func (c *Clusterer) Lines() int {
	return c.lines
}

// Distinct returns the number of clusters created so far.
func (c *Clusterer) Distinct() int {
	return len(c.clusters)
}

// Clusters returns up to TopK clusters by descending count; clusters with
// equal counts keep their creation order.
func (c *Clusterer) Clusters() []Cluster {
	sorted := make([]*Cluster, len(c.clusters))
	copy(sorted, c.clusters)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Count > sorted[j].Count
	})

	if len(sorted) > c.opts.TopK {
		sorted = sorted[:c.opts.TopK]
	}

	out := make([]Cluster, len(sorted))
	for i, cl := range sorted {
		out[i] = Cluster{
			ID:       cl.ID,
			Rep:      cl.Rep,
			Count:    cl.Count,
			Examples: append([]string{}, cl.Examples...),
		}
	}
	return out
}

// ClusterLines clusters every error-ish line of lines.
// It returns the clusters and the number of error-ish lines seen.
func ClusterLines(lines []string, opts ClusterOptions) ([]Cluster, int, error) {
	c, err := NewClusterer(opts)
	if err != nil {
		return nil, 0, err
	}
	for _, line := range lines {
		if IsErrorish(line) {
			c.Add(line)
		}
	}
	return c.Clusters(), c.Lines(), nil
}
