package scoring

import (
	"math"
	"path"
	"strings"

	"github.com/drewdunne/prbounty/internal/provider"
	"github.com/drewdunne/prbounty/internal/signal"
)

func clamp(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 10 {
		return 10
	}
	return v
}

// logScale maps v onto [0,10], reaching 10 at sat.
func logScale(v, sat float64) float64 {
	if v <= 0 || sat <= 0 {
		return 0
	}
	return clamp(10 * (math.Log1p(v) / math.Log1p(sat)))
}

// codeSize blends lines changed (70%) with files touched (30%).
func codeSize(sig *signal.PullRequestSignal, sat Saturation) float64 {
	lines := logScale(float64(sig.LinesChanged()), float64(sat.SizeLines))
	files := clamp(10 * float64(sig.FileCount()) / float64(sat.Files))
	return clamp(lines*0.7 + files*0.3)
}

// reviewCycles rewards rounds of requested changes. No requested changes
// scores 1, not 0, so a clean approval is distinguishable from no data.
func reviewCycles(sig *signal.PullRequestSignal) float64 {
	var rounds int
	for _, r := range sig.Reviews {
		if r.State == provider.ReviewChangesRequested {
			rounds++
		}
	}
	if rounds == 0 {
		return 1
	}
	return clamp(1 + 3*float64(rounds))
}

func reviewTime(sig *signal.PullRequestSignal, sat Saturation) float64 {
	if sig.MergedAt == nil || sig.CreatedAt.IsZero() {
		return 0
	}
	open := sig.MergedAt.Sub(sig.CreatedAt)
	if open <= 0 {
		return 0
	}
	// Merged within minutes and never reviewed: a rubber stamp.
	if open.Minutes() < sat.RubberStampMinutes && len(sig.Reviews) == 0 {
		return 0
	}
	return logScale(open.Hours(), sat.ReviewTimeHours)
}

func firstReviewWait(sig *signal.PullRequestSignal, sat Saturation) float64 {
	if sig.CreatedAt.IsZero() {
		return 0
	}
	var first *provider.Review
	for i := range sig.Reviews {
		r := &sig.Reviews[i]
		if r.SubmittedAt.IsZero() {
			continue
		}
		if first == nil || r.SubmittedAt.Before(first.SubmittedAt) {
			first = r
		}
	}
	if first == nil {
		return 0
	}
	return logScale(first.SubmittedAt.Sub(sig.CreatedAt).Hours(), sat.FirstReviewHours)
}

// reviewDepth scores inline commentary. Commentary confined to one file is
// capped at 3.
func reviewDepth(sig *signal.PullRequestSignal) float64 {
	if len(sig.ReviewComments) == 0 {
		return 0
	}
	files := make(map[string]struct{})
	for _, c := range sig.ReviewComments {
		if c.Path != "" {
			files[c.Path] = struct{}{}
		}
	}
	score := clamp(0.5*float64(len(sig.ReviewComments)) + 1.5*float64(len(files)))
	if len(files) <= 1 {
		return math.Min(score, 3)
	}
	return score
}

func codeQuality(sig *signal.PullRequestSignal) float64 {
	var score float64

	for _, f := range sig.Files {
		if isTestFile(f.Path) {
			score += 4
			break
		}
	}

	if checks := sig.Checks(); len(checks) > 0 {
		passed := true
		for _, c := range checks {
			if !c.Succeeded() {
				passed = false
				break
			}
		}
		if passed {
			score += 3
		} else {
			score++
		}
	}

	if lines, ok := patchLines(sig.Files); ok {
		switch {
		case lines <= 200:
			score += 3
		case lines <= 800:
			score += 2
		case lines <= 2000:
			score++
		}
	}

	return clamp(score)
}

func isTestFile(p string) bool {
	p = strings.ToLower(p)
	base := path.Base(p)
	slashed := "/" + p
	return strings.Contains(base, "_test.") ||
		strings.Contains(base, ".test.") ||
		strings.Contains(base, "spec.") ||
		strings.HasPrefix(base, "test_") ||
		strings.Contains(slashed, "/test/") ||
		strings.Contains(slashed, "/tests/")
}

// patchLines counts diff lines across all files that carry a patch.
func patchLines(files []provider.ChangedFile) (int, bool) {
	var lines int
	var found bool
	for _, f := range files {
		if f.Patch == "" {
			continue
		}
		found = true
		lines += strings.Count(strings.TrimSuffix(f.Patch, "\n"), "\n") + 1
	}
	return lines, found
}
