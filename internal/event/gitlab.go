package event

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/drewdunne/prbounty/internal/webhook"
)

// gitLabPayload is the subset of a merge_request delivery that is used.
type gitLabPayload struct {
	ObjectKind       string `json:"object_kind"`
	ObjectAttributes struct {
		IID      int    `json:"iid"`
		Title    string `json:"title"`
		URL      string `json:"url"`
		Action   string `json:"action"`
		State    string `json:"state"`
		MergedAt string `json:"merged_at"`
	} `json:"object_attributes"`
	Project struct {
		PathWithNamespace string `json:"path_with_namespace"`
		WebURL            string `json:"web_url"`
	} `json:"project"`
	User struct {
		Username string `json:"username"`
	} `json:"user"`
}

// gitLabTimeLayouts covers the formats GitLab has used for webhook
// timestamps.
var gitLabTimeLayouts = []string{time.RFC3339, "2006-01-02 15:04:05 MST", "2006-01-02 15:04:05 -0700"}

// NormalizeGitLabEvent converts a merge_request "merge" delivery into an
// Event. Any other delivery returns webhook.ErrIgnored.
func NormalizeGitLabEvent(glEvent *webhook.GitLabEvent) (*Event, error) {
	var payload gitLabPayload
	if err := json.Unmarshal(glEvent.RawPayload, &payload); err != nil {
		return nil, fmt.Errorf("parsing payload: %w", err)
	}

	attrs := payload.ObjectAttributes
	if payload.ObjectKind != "merge_request" || attrs.Action != "merge" {
		return nil, fmt.Errorf("%w: %s action %s", webhook.ErrIgnored, payload.ObjectKind, attrs.Action)
	}

	path := payload.Project.PathWithNamespace
	i := strings.LastIndex(path, "/")
	if i <= 0 || i == len(path)-1 {
		return nil, fmt.Errorf("invalid project path: %s", path)
	}

	web := attrs.URL
	if web == "" {
		web = payload.Project.WebURL
	}
	u, err := url.Parse(web)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid merge request url: %q", web)
	}

	event := &Event{
		Type:       TypeMerged,
		Provider:   "gitlab",
		Host:       strings.ToLower(u.Hostname()),
		Owner:      path[:i],
		Repo:       path[i+1:],
		Number:     attrs.IID,
		Title:      attrs.Title,
		URL:        attrs.URL,
		Author:     payload.User.Username,
		RawPayload: glEvent.RawPayload,
	}
	for _, layout := range gitLabTimeLayouts {
		if t, err := time.Parse(layout, attrs.MergedAt); err == nil {
			event.MergedAt = t
			break
		}
	}
	return event, nil
}
