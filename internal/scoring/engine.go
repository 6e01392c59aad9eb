package scoring

import (
	"fmt"
	"math"
	"strings"

	"github.com/drewdunne/prbounty/internal/signal"
)

// Engine computes local analyses. It is pure: the same signal always
// yields the same analysis.
type Engine struct {
	cfg Config
}

// NewEngine validates cfg and returns an Engine.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scoring config: %w", err)
	}
	return &Engine{cfg: cfg}, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Metrics computes every sub-score.
func (e *Engine) Metrics(sig *signal.PullRequestSignal) MetricScores {
	sat := e.cfg.Saturation
	return MetricScores{
		CodeSize:        codeSize(sig, sat),
		ReviewCycles:    reviewCycles(sig),
		ReviewTime:      reviewTime(sig, sat),
		FirstReviewWait: firstReviewWait(sig, sat),
		ReviewDepth:     reviewDepth(sig),
		CodeQuality:     codeQuality(sig),
	}
}

// Score computes the local analysis of sig.
func (e *Engine) Score(sig *signal.PullRequestSignal) Analysis {
	m := e.Metrics(sig)
	final := e.Weigh(m)
	category := e.Categorize(final)
	return Analysis{
		Category:     category,
		FinalScore:   final,
		MetricScores: m,
		Reasoning:    reasoning(m, final, category),
		Source:       SourceLocal,
	}
}

// Weigh returns the weighted sum of m rounded to one decimal.
func (e *Engine) Weigh(m MetricScores) float64 {
	var sum float64
	weights := e.cfg.Weights.values()
	for i, v := range m.Values() {
		sum += weights[i] * v
	}
	return Round1(clamp(sum))
}

// Categorize maps a final score to its category.
func (e *Engine) Categorize(score float64) Category {
	return e.cfg.Thresholds.Categorize(score)
}

// Round1 rounds to one decimal place.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func reasoning(m MetricScores, final float64, c Category) string {
	var b strings.Builder
	b.WriteString("local metrics:")
	for i, v := range m.Values() {
		fmt.Fprintf(&b, " %s=%.1f", MetricNames[i], v)
	}
	fmt.Fprintf(&b, "; weighted score %.1f (%s)", final, c)
	return b.String()
}
