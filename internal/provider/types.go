package provider

import "time"

// PullRequest represents a merge request/pull request.
type PullRequest struct {
	Number       int // PR number (GitHub) or MR IID (GitLab)
	Title        string
	Description  string
	State        string // open, closed, merged
	Author       string
	URL          string
	HeadSHA      string
	Merged       bool
	Additions    int
	Deletions    int
	ChangedFiles int
	CreatedAt    time.Time
	MergedAt     *time.Time
}

// ChangedFile represents a file changed in a merge request.
type ChangedFile struct {
	Path      string
	Status    string // added, modified, deleted, renamed
	Additions int
	Deletions int
	Patch     string
}

// Commit is a single commit on the pull request branch.
type Commit struct {
	SHA     string
	Message string
	Author  string
	Date    time.Time
}

// ReviewState is the normalized verdict of a review.
type ReviewState string

// Review states.
const (
	ReviewApproved         ReviewState = "approved"
	ReviewChangesRequested ReviewState = "changes_requested"
	ReviewCommented        ReviewState = "commented"
	ReviewDismissed        ReviewState = "dismissed"
)

// Review is a submitted review. SubmittedAt is zero when the platform
// does not report it.
type Review struct {
	Author      string
	State       ReviewState
	SubmittedAt time.Time
}

// ReviewComment is an inline comment on the diff.
type ReviewComment struct {
	Author    string
	Path      string
	CreatedAt time.Time
}

// Issue is the subset of issue data used for linking.
type Issue struct {
	Owner  string
	Repo   string
	Number int
	Title  string
	State  string
	Labels []string
}

// Check is a commit status, check run or pipeline.
type Check struct {
	Name       string
	Status     string // queued, in_progress, completed
	Conclusion string // success, failure, neutral, ...
}

// Succeeded reports whether the check finished successfully.
func (c Check) Succeeded() bool {
	switch c.Conclusion {
	case "success", "neutral", "skipped":
		return true
	}
	return false
}
