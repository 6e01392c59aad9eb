// Package signal collects the platform data a pull request is scored on.
package signal

import (
	"time"

	"github.com/drewdunne/prbounty/internal/provider"
)

// PullRequestSignal is everything known about a pull request at scoring
// time. Optional parts are empty when their fetch failed.
type PullRequestSignal struct {
	Owner        string
	Repo         string
	Number       int
	Title        string
	Description  string
	Author       string
	HeadSHA      string
	Additions    int
	Deletions    int
	ChangedFiles int
	Merged       bool
	CreatedAt    time.Time
	MergedAt     *time.Time

	Files          []provider.ChangedFile
	Commits        []provider.Commit
	Reviews        []provider.Review
	ReviewComments []provider.ReviewComment
	LinkedIssue    *provider.Issue
	Statuses       []provider.Check
	CheckRuns      []provider.Check
}

// Checks returns commit statuses and check runs together.
func (s *PullRequestSignal) Checks() []provider.Check {
	checks := make([]provider.Check, 0, len(s.Statuses)+len(s.CheckRuns))
	checks = append(checks, s.Statuses...)
	return append(checks, s.CheckRuns...)
}

// LinesChanged returns additions plus deletions.
func (s *PullRequestSignal) LinesChanged() int {
	return s.Additions + s.Deletions
}

// FileCount returns the number of changed files, preferring the file list
// over the platform's summary count.
func (s *PullRequestSignal) FileCount() int {
	if len(s.Files) > 0 {
		return len(s.Files)
	}
	return s.ChangedFiles
}
