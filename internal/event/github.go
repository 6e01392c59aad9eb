package event

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/drewdunne/prbounty/internal/webhook"
)

// gitHubPayload is the subset of a pull_request delivery that is used.
type gitHubPayload struct {
	Action      string `json:"action"`
	Number      int    `json:"number"`
	PullRequest struct {
		Title    string     `json:"title"`
		HTMLURL  string     `json:"html_url"`
		Merged   bool       `json:"merged"`
		MergedAt *time.Time `json:"merged_at"`
		User     struct {
			Login string `json:"login"`
		} `json:"user"`
	} `json:"pull_request"`
	Repository struct {
		FullName string `json:"full_name"`
	} `json:"repository"`
}

// NormalizeGitHubEvent converts a merged pull_request delivery into an
// Event. Any other delivery returns webhook.ErrIgnored.
func NormalizeGitHubEvent(ghEvent *webhook.GitHubEvent) (*Event, error) {
	if ghEvent.EventType != "pull_request" {
		return nil, fmt.Errorf("%w: event type %s", webhook.ErrIgnored, ghEvent.EventType)
	}

	var payload gitHubPayload
	if err := json.Unmarshal(ghEvent.RawPayload, &payload); err != nil {
		return nil, fmt.Errorf("parsing payload: %w", err)
	}

	pr := payload.PullRequest
	if payload.Action != "closed" || !pr.Merged {
		return nil, fmt.Errorf("%w: pull_request action %s (merged=%t)", webhook.ErrIgnored, payload.Action, pr.Merged)
	}

	// Parse owner/repo from full_name
	parts := strings.SplitN(payload.Repository.FullName, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, fmt.Errorf("invalid repository full_name: %s", payload.Repository.FullName)
	}

	u, err := url.Parse(pr.HTMLURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid pull request url: %q", pr.HTMLURL)
	}

	event := &Event{
		Type:       TypeMerged,
		Provider:   "github",
		Host:       strings.ToLower(u.Hostname()),
		Owner:      parts[0],
		Repo:       parts[1],
		Number:     payload.Number,
		Title:      pr.Title,
		URL:        pr.HTMLURL,
		Author:     pr.User.Login,
		RawPayload: ghEvent.RawPayload,
	}
	if pr.MergedAt != nil {
		event.MergedAt = *pr.MergedAt
	}
	return event, nil
}
