package scoring

import (
	"errors"
	"fmt"
	"math"
)

// Weights are the per-metric multipliers of the final score. They must be
// non-negative and sum to 1.
type Weights struct {
	CodeSize        float64 `yaml:"code_size" json:"code_size"`
	ReviewCycles    float64 `yaml:"review_cycles" json:"review_cycles"`
	ReviewTime      float64 `yaml:"review_time" json:"review_time"`
	FirstReviewWait float64 `yaml:"first_review_wait" json:"first_review_wait"`
	ReviewDepth     float64 `yaml:"review_depth" json:"review_depth"`
	CodeQuality     float64 `yaml:"code_quality" json:"code_quality"`
}

func (w Weights) values() []float64 {
	return []float64{w.CodeSize, w.ReviewCycles, w.ReviewTime, w.FirstReviewWait, w.ReviewDepth, w.CodeQuality}
}

// Thresholds split final scores into categories: below Medium is easy,
// below Hard is medium, everything else is hard.
type Thresholds struct {
	Medium float64 `yaml:"medium" json:"medium"`
	Hard   float64 `yaml:"hard" json:"hard"`
}

// Categorize maps a final score to its category.
func (t Thresholds) Categorize(score float64) Category {
	switch {
	case score < t.Medium:
		return CategoryEasy
	case score < t.Hard:
		return CategoryMedium
	default:
		return CategoryHard
	}
}

// Saturation sets where the log-scaled metrics reach 10.
type Saturation struct {
	SizeLines          int     `yaml:"size_lines"`
	Files              int     `yaml:"files"`
	ReviewTimeHours    float64 `yaml:"review_time_hours"`
	FirstReviewHours   float64 `yaml:"first_review_hours"`
	RubberStampMinutes float64 `yaml:"rubber_stamp_minutes"`
}

// Config parameterizes the Engine.
type Config struct {
	Weights    Weights    `yaml:"weights"`
	Thresholds Thresholds `yaml:"thresholds"`
	Saturation Saturation `yaml:"saturation"`
}

const weightTolerance = 1e-6

// DefaultConfig returns the standard weights, thresholds and saturation points.
func DefaultConfig() Config {
	return Config{
		Weights: Weights{
			CodeSize:        0.20,
			ReviewCycles:    0.15,
			ReviewTime:      0.20,
			FirstReviewWait: 0.15,
			ReviewDepth:     0.15,
			CodeQuality:     0.15,
		},
		Thresholds: Thresholds{Medium: 4, Hard: 7},
		Saturation: Saturation{
			SizeLines:          1000,
			Files:              20,
			ReviewTimeHours:    72,
			FirstReviewHours:   48,
			RubberStampMinutes: 10,
		},
	}
}

// Validate reports every problem with the configuration.
func (c Config) Validate() error {
	var errs []error

	var sum float64
	for i, w := range c.Weights.values() {
		if w < 0 || math.IsNaN(w) {
			errs = append(errs, fmt.Errorf("weight %s must be non-negative", MetricNames[i]))
		}
		sum += w
	}
	if math.Abs(sum-1) > weightTolerance {
		errs = append(errs, fmt.Errorf("weights sum to %.6f, want 1", sum))
	}

	t := c.Thresholds
	if !(t.Medium > 0 && t.Medium <= t.Hard && t.Hard <= 10) {
		errs = append(errs, fmt.Errorf("thresholds must satisfy 0 < medium (%v) <= hard (%v) <= 10", t.Medium, t.Hard))
	}

	s := c.Saturation
	if s.SizeLines <= 0 || s.Files <= 0 || s.ReviewTimeHours <= 0 || s.FirstReviewHours <= 0 {
		errs = append(errs, errors.New("saturation points must be positive"))
	}
	if s.RubberStampMinutes < 0 {
		errs = append(errs, errors.New("saturation.rubber_stamp_minutes must not be negative"))
	}

	return errors.Join(errs...)
}
