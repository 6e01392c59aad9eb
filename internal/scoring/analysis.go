// Package scoring turns a pull request signal into a deterministic
// contribution analysis.
package scoring

import "fmt"

// Category buckets a final score.
type Category string

// Categories.
const (
	CategoryEasy   Category = "easy"
	CategoryMedium Category = "medium"
	CategoryHard   Category = "hard"
)

// ParseCategory validates a category name.
func ParseCategory(s string) (Category, error) {
	switch c := Category(s); c {
	case CategoryEasy, CategoryMedium, CategoryHard:
		return c, nil
	}
	return "", fmt.Errorf("unknown category %q", s)
}

// Source records where an analysis came from.
type Source string

// Analysis sources.
const (
	SourceOracle Source = "oracle"
	SourceLocal  Source = "local"
)

// Metric names, in the order they are reported.
const (
	MetricCodeSize        = "code_size"
	MetricReviewCycles    = "review_cycles"
	MetricReviewTime      = "review_time"
	MetricFirstReviewWait = "first_review_wait"
	MetricReviewDepth     = "review_depth"
	MetricCodeQuality     = "code_quality"
)

// MetricNames lists every metric in reporting order.
var MetricNames = []string{
	MetricCodeSize,
	MetricReviewCycles,
	MetricReviewTime,
	MetricFirstReviewWait,
	MetricReviewDepth,
	MetricCodeQuality,
}

// MetricScores holds one score in [0,10] per metric.
type MetricScores struct {
	CodeSize        float64 `json:"code_size"`
	ReviewCycles    float64 `json:"review_cycles"`
	ReviewTime      float64 `json:"review_time"`
	FirstReviewWait float64 `json:"first_review_wait"`
	ReviewDepth     float64 `json:"review_depth"`
	CodeQuality     float64 `json:"code_quality"`
}

// Values returns the scores in MetricNames order.
func (m MetricScores) Values() []float64 {
	return []float64{m.CodeSize, m.ReviewCycles, m.ReviewTime, m.FirstReviewWait, m.ReviewDepth, m.CodeQuality}
}

// Map returns the scores keyed by metric name.
func (m MetricScores) Map() map[string]float64 {
	out := make(map[string]float64, len(MetricNames))
	for i, v := range m.Values() {
		out[MetricNames[i]] = v
	}
	return out
}

// MetricScoresFromMap builds MetricScores from a name-keyed map. Every
// metric must be present.
func MetricScoresFromMap(in map[string]float64) (MetricScores, error) {
	for _, name := range MetricNames {
		if _, ok := in[name]; !ok {
			return MetricScores{}, fmt.Errorf("missing metric %q", name)
		}
	}
	return MetricScores{
		CodeSize:        in[MetricCodeSize],
		ReviewCycles:    in[MetricReviewCycles],
		ReviewTime:      in[MetricReviewTime],
		FirstReviewWait: in[MetricFirstReviewWait],
		ReviewDepth:     in[MetricReviewDepth],
		CodeQuality:     in[MetricCodeQuality],
	}, nil
}

// Analysis is the immutable result of scoring a contribution.
type Analysis struct {
	Category     Category     `json:"category"`
	FinalScore   float64      `json:"final_score"`
	MetricScores MetricScores `json:"metric_scores"`
	Reasoning    string       `json:"reasoning"`
	Source       Source       `json:"source"`
}
