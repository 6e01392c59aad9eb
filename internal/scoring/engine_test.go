package scoring

import (
	"fmt"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drewdunne/prbounty/internal/provider"
	"github.com/drewdunne/prbounty/internal/signal"
)

var created = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(DefaultConfig())
	require.NoError(t, err)
	return e
}

func mergedAfter(d time.Duration) *time.Time {
	at := created.Add(d)
	return &at
}

func reviewedSignal() *signal.PullRequestSignal {
	return &signal.PullRequestSignal{
		Owner:     "owner",
		Repo:      "repo",
		Number:    42,
		Additions: 150,
		Deletions: 30,
		Merged:    true,
		CreatedAt: created,
		MergedAt:  mergedAfter(26 * time.Hour),
		Files: []provider.ChangedFile{
			{Path: "server/list.go", Additions: 110, Deletions: 30, Patch: "@@\n+a\n-b"},
			{Path: "server/list_test.go", Additions: 40, Patch: "@@\n+c"},
		},
		Reviews: []provider.Review{
			{Author: "bob", State: provider.ReviewChangesRequested, SubmittedAt: created.Add(3 * time.Hour)},
			{Author: "bob", State: provider.ReviewApproved, SubmittedAt: created.Add(20 * time.Hour)},
		},
		ReviewComments: []provider.ReviewComment{
			{Author: "bob", Path: "server/list.go"},
			{Author: "bob", Path: "server/list.go"},
			{Author: "bob", Path: "server/list_test.go"},
		},
		CheckRuns: []provider.Check{{Name: "ci", Status: "completed", Conclusion: "success"}},
	}
}

func TestScore_ReviewedPullRequest(t *testing.T) {
	a := newEngine(t).Score(reviewedSignal())

	assert.Equal(t, SourceLocal, a.Source)
	assert.Equal(t, 4.0, a.MetricScores.ReviewCycles)
	assert.Equal(t, 4.5, a.MetricScores.ReviewDepth)
	assert.Equal(t, 10.0, a.MetricScores.CodeQuality)
	assert.Greater(t, a.MetricScores.ReviewTime, 0.0)
	assert.Greater(t, a.MetricScores.FirstReviewWait, 0.0)
	assert.Equal(t, a.FinalScore, Round1(a.FinalScore), "final score has one decimal")
	assert.Contains(t, a.Reasoning, "review_cycles=4.0")
}

func TestScore_Deterministic(t *testing.T) {
	e := newEngine(t)
	sig := reviewedSignal()

	first := e.Score(sig)
	for i := 0; i < 50; i++ {
		assert.Equal(t, first, e.Score(sig))
	}
}

func TestScore_EmptySignalHasNoNaN(t *testing.T) {
	a := newEngine(t).Score(&signal.PullRequestSignal{})

	for i, v := range a.MetricScores.Values() {
		assert.False(t, math.IsNaN(v), "%s is NaN", MetricNames[i])
	}
	assert.Equal(t, 0.0, a.MetricScores.CodeSize)
	assert.Equal(t, 1.0, a.MetricScores.ReviewCycles)
	assert.Equal(t, 0.0, a.MetricScores.ReviewDepth)
	assert.Equal(t, CategoryEasy, a.Category)
}

func TestScore_BoundsOverRandomSignals(t *testing.T) {
	e := newEngine(t)
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 500; i++ {
		sig := randomSignal(rng)
		a := e.Score(sig)

		for j, v := range a.MetricScores.Values() {
			require.True(t, v >= 0 && v <= 10, "signal %d: %s = %v", i, MetricNames[j], v)
		}
		require.True(t, a.FinalScore >= 0 && a.FinalScore <= 10, "signal %d: final = %v", i, a.FinalScore)
		require.Contains(t, []Category{CategoryEasy, CategoryMedium, CategoryHard}, a.Category)
	}
}

func randomSignal(rng *rand.Rand) *signal.PullRequestSignal {
	sig := &signal.PullRequestSignal{
		Additions: rng.Intn(50000),
		Deletions: rng.Intn(50000),
		CreatedAt: created,
		MergedAt:  mergedAfter(time.Duration(rng.Int63n(int64(2000 * time.Hour)))),
	}
	for i := rng.Intn(60); i > 0; i-- {
		sig.Files = append(sig.Files, provider.ChangedFile{Path: fmt.Sprintf("pkg/f%d.go", i), Patch: "+x"})
	}
	states := []provider.ReviewState{provider.ReviewApproved, provider.ReviewChangesRequested, provider.ReviewCommented, provider.ReviewDismissed}
	for i := rng.Intn(10); i > 0; i-- {
		sig.Reviews = append(sig.Reviews, provider.Review{
			State:       states[rng.Intn(len(states))],
			SubmittedAt: created.Add(time.Duration(rng.Int63n(int64(500 * time.Hour)))),
		})
	}
	for i := rng.Intn(80); i > 0; i-- {
		sig.ReviewComments = append(sig.ReviewComments, provider.ReviewComment{Path: fmt.Sprintf("pkg/f%d.go", rng.Intn(5))})
	}
	return sig
}

func TestCodeSize_Monotonic(t *testing.T) {
	sat := DefaultConfig().Saturation
	prev := -1.0
	for lines := 0; lines <= 5000; lines += 50 {
		got := codeSize(&signal.PullRequestSignal{Additions: lines, ChangedFiles: 3}, sat)
		assert.GreaterOrEqual(t, got, prev, "lines=%d", lines)
		prev = got
	}
	assert.Equal(t, 10.0, codeSize(&signal.PullRequestSignal{Additions: 1000, ChangedFiles: 20}, sat))
}

func TestReviewCycles(t *testing.T) {
	tests := []struct {
		rounds int
		want   float64
	}{
		{0, 1},
		{1, 4},
		{2, 7},
		{3, 10},
		{6, 10},
	}

	for _, tt := range tests {
		sig := &signal.PullRequestSignal{}
		for i := 0; i < tt.rounds; i++ {
			sig.Reviews = append(sig.Reviews, provider.Review{State: provider.ReviewChangesRequested})
		}
		sig.Reviews = append(sig.Reviews, provider.Review{State: provider.ReviewApproved})
		assert.Equal(t, tt.want, reviewCycles(sig), "rounds=%d", tt.rounds)
	}
}

func TestReviewTime_RubberStamp(t *testing.T) {
	sat := DefaultConfig().Saturation

	quick := &signal.PullRequestSignal{CreatedAt: created, MergedAt: mergedAfter(5 * time.Minute)}
	assert.Equal(t, 0.0, reviewTime(quick, sat))

	quick.Reviews = []provider.Review{{State: provider.ReviewApproved, SubmittedAt: created.Add(time.Minute)}}
	assert.Greater(t, reviewTime(quick, sat), 0.0, "a reviewed quick merge is not a rubber stamp")

	assert.Equal(t, 10.0, reviewTime(&signal.PullRequestSignal{CreatedAt: created, MergedAt: mergedAfter(72 * time.Hour)}, sat))
	assert.Equal(t, 0.0, reviewTime(&signal.PullRequestSignal{CreatedAt: created}, sat), "unmerged")
}

func TestFirstReviewWait(t *testing.T) {
	sat := DefaultConfig().Saturation

	assert.Equal(t, 0.0, firstReviewWait(&signal.PullRequestSignal{CreatedAt: created}, sat))

	sig := &signal.PullRequestSignal{
		CreatedAt: created,
		Reviews: []provider.Review{
			{State: provider.ReviewApproved, SubmittedAt: created.Add(48 * time.Hour)},
			{State: provider.ReviewApproved},
		},
	}
	assert.Equal(t, 10.0, firstReviewWait(sig, sat))

	sig.Reviews = append(sig.Reviews, provider.Review{State: provider.ReviewCommented, SubmittedAt: created.Add(time.Hour)})
	assert.Less(t, firstReviewWait(sig, sat), 10.0, "earliest review counts")
}

func TestReviewDepth(t *testing.T) {
	comments := func(paths ...string) *signal.PullRequestSignal {
		sig := &signal.PullRequestSignal{}
		for _, p := range paths {
			sig.ReviewComments = append(sig.ReviewComments, provider.ReviewComment{Path: p})
		}
		return sig
	}

	assert.Equal(t, 0.0, reviewDepth(comments()))
	assert.Equal(t, 2.0, reviewDepth(comments("a.go")))
	assert.Equal(t, 3.0, reviewDepth(comments("a.go", "a.go", "a.go", "a.go", "a.go", "a.go")), "single-file commentary is capped")
	assert.Equal(t, 4.0, reviewDepth(comments("a.go", "b.go")))
	assert.Equal(t, 10.0, reviewDepth(comments("a", "b", "c", "d", "e", "f", "g", "h")))
}

func TestCodeQuality(t *testing.T) {
	tests := []struct {
		name string
		sig  *signal.PullRequestSignal
		want float64
	}{
		{"nothing", &signal.PullRequestSignal{}, 0},
		{"tests only", &signal.PullRequestSignal{Files: []provider.ChangedFile{{Path: "tests/foo.py"}}}, 4},
		{"failing checks", &signal.PullRequestSignal{Statuses: []provider.Check{{Conclusion: "success"}, {Conclusion: "failure"}}}, 1},
		{"passing checks", &signal.PullRequestSignal{CheckRuns: []provider.Check{{Conclusion: "success"}}}, 3},
		{"small patch", &signal.PullRequestSignal{Files: []provider.ChangedFile{{Path: "a.go", Patch: "+a\n+b"}}}, 3},
		{"everything", &signal.PullRequestSignal{
			Files:     []provider.ChangedFile{{Path: "web/button.spec.ts", Patch: "+a"}},
			CheckRuns: []provider.Check{{Conclusion: "success"}},
		}, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, codeQuality(tt.sig))
		})
	}
}

func TestIsTestFile(t *testing.T) {
	for _, p := range []string{"pkg/a_test.go", "test/helpers.rb", "src/tests/x.py", "ui/a.spec.ts", "test_utils.py", "x.test.js"} {
		assert.True(t, isTestFile(p), p)
	}
	for _, p := range []string{"pkg/a.go", "contest/a.go", "latest.go", "README.md"} {
		assert.False(t, isTestFile(p), p)
	}
}

func TestCategorize_Total(t *testing.T) {
	e := newEngine(t)

	tests := []struct {
		score float64
		want  Category
	}{
		{0, CategoryEasy},
		{3.9, CategoryEasy},
		{4.0, CategoryMedium},
		{6.9, CategoryMedium},
		{7.0, CategoryHard},
		{10, CategoryHard},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, e.Categorize(tt.score), "score %v", tt.score)
	}
	for s := 0.0; s <= 10; s += 0.1 {
		assert.NotEmpty(t, e.Categorize(Round1(s)))
	}
}

func TestThresholds_Categorize(t *testing.T) {
	th := Thresholds{Medium: 3, Hard: 9}

	assert.Equal(t, CategoryEasy, th.Categorize(2.9))
	assert.Equal(t, CategoryMedium, th.Categorize(3))
	assert.Equal(t, CategoryMedium, th.Categorize(8.9))
	assert.Equal(t, CategoryHard, th.Categorize(9))
}

func TestWeigh_Rounds(t *testing.T) {
	e := newEngine(t)
	m := MetricScores{CodeSize: 5, ReviewCycles: 5, ReviewTime: 5, FirstReviewWait: 5, ReviewDepth: 5, CodeQuality: 5.33}

	assert.Equal(t, 5.0, e.Weigh(m))
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.Weights.CodeSize = -0.2
	cfg.Weights.ReviewTime = 0.6
	assert.ErrorContains(t, cfg.Validate(), "non-negative")

	cfg = DefaultConfig()
	cfg.Weights.CodeQuality = 0.3
	assert.ErrorContains(t, cfg.Validate(), "sum")

	cfg = DefaultConfig()
	cfg.Thresholds = Thresholds{Medium: 8, Hard: 7}
	assert.ErrorContains(t, cfg.Validate(), "thresholds")

	cfg = DefaultConfig()
	cfg.Saturation.Files = 0
	assert.ErrorContains(t, cfg.Validate(), "saturation")

	_, err := NewEngine(cfg)
	assert.Error(t, err)
}

func TestMetricScoresFromMap(t *testing.T) {
	m := MetricScores{CodeSize: 1, ReviewCycles: 2, ReviewTime: 3, FirstReviewWait: 4, ReviewDepth: 5, CodeQuality: 6}

	got, err := MetricScoresFromMap(m.Map())
	require.NoError(t, err)
	assert.Equal(t, m, got)

	partial := m.Map()
	delete(partial, MetricReviewDepth)
	_, err = MetricScoresFromMap(partial)
	assert.ErrorContains(t, err, "review_depth")
}
