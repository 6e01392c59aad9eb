package oracle

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/drewdunne/prbounty/internal/scoring"
)

// ErrInvalidResponse is returned for oracle answers that cannot be used.
var ErrInvalidResponse = errors.New("invalid oracle response")

// response is one of the accepted answer shapes.
type response interface {
	analysis(scoring.Thresholds) (*scoring.Analysis, error)
}

// flatResponse carries the analysis in canonical form.
type flatResponse struct {
	Category     *string             `json:"category"`
	FinalScore   *float64            `json:"final_score"`
	MetricScores map[string]*float64 `json:"metric_scores"`
	Reasoning    string              `json:"reasoning"`
}

// executionNestedResponse keeps sub-scores under "execution" and uses the
// impact vocabulary for categories.
type executionNestedResponse struct {
	Execution  map[string]*float64 `json:"execution"`
	Category   *string             `json:"category"`
	FinalScore *float64            `json:"final_score"`
	Reasoning  string              `json:"reasoning"`
}

var impactCategories = map[string]scoring.Category{
	"low-impact":    scoring.CategoryEasy,
	"medium-impact": scoring.CategoryMedium,
	"high-impact":   scoring.CategoryHard,
}

func decodeResponse(body []byte) (response, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(body, &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	if _, nested := probe["execution"]; nested {
		var r executionNestedResponse
		if err := json.Unmarshal(body, &r); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
		}
		return r, nil
	}

	var r flatResponse
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return r, nil
}

// Normalize decodes an oracle answer in either accepted shape. Any missing
// field, out-of-range score or category that disagrees with the rounded
// final score under th rejects the whole answer.
func Normalize(body []byte, th scoring.Thresholds) (*scoring.Analysis, error) {
	r, err := decodeResponse(body)
	if err != nil {
		return nil, err
	}
	return r.analysis(th)
}

func (r flatResponse) analysis(th scoring.Thresholds) (*scoring.Analysis, error) {
	if r.Category == nil {
		return nil, fmt.Errorf("%w: missing category", ErrInvalidResponse)
	}
	category, err := scoring.ParseCategory(*r.Category)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return build(th, category, r.FinalScore, r.MetricScores, r.Reasoning)
}

func (r executionNestedResponse) analysis(th scoring.Thresholds) (*scoring.Analysis, error) {
	if r.Category == nil {
		return nil, fmt.Errorf("%w: missing category", ErrInvalidResponse)
	}
	category, ok := impactCategories[*r.Category]
	if !ok {
		return nil, fmt.Errorf("%w: unknown impact %q", ErrInvalidResponse, *r.Category)
	}
	return build(th, category, r.FinalScore, r.Execution, r.Reasoning)
}

func build(th scoring.Thresholds, category scoring.Category, final *float64, scores map[string]*float64, reasoning string) (*scoring.Analysis, error) {
	if final == nil {
		return nil, fmt.Errorf("%w: missing final_score", ErrInvalidResponse)
	}
	if !inRange(*final) {
		return nil, fmt.Errorf("%w: final_score %v outside [0,10]", ErrInvalidResponse, *final)
	}
	rounded := scoring.Round1(*final)
	if want := th.Categorize(rounded); category != want {
		return nil, fmt.Errorf("%w: category %s does not match final_score %v (%s)", ErrInvalidResponse, category, rounded, want)
	}

	values := make(map[string]float64, len(scoring.MetricNames))
	for _, name := range scoring.MetricNames {
		v, ok := scores[name]
		if !ok || v == nil {
			return nil, fmt.Errorf("%w: missing metric %q", ErrInvalidResponse, name)
		}
		if !inRange(*v) {
			return nil, fmt.Errorf("%w: metric %q = %v outside [0,10]", ErrInvalidResponse, name, *v)
		}
		values[name] = *v
	}
	metrics, err := scoring.MetricScoresFromMap(values)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	return &scoring.Analysis{
		Category:     category,
		FinalScore:   rounded,
		MetricScores: metrics,
		Reasoning:    reasoning,
		Source:       scoring.SourceOracle,
	}, nil
}

func inRange(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 10
}
