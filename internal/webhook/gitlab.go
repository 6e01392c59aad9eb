package webhook

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
)

// GitLabEvent is an authenticated GitLab delivery.
type GitLabEvent struct {
	EventType        string
	ObjectKind       string `json:"object_kind"`
	ObjectAttributes struct {
		Action string `json:"action"`
	} `json:"object_attributes"`
	RawPayload []byte
}

// GitLabEventHandler is called for every authenticated GitLab delivery.
type GitLabEventHandler func(ctx context.Context, event *GitLabEvent) error

// NewGitLabHandler returns a handler that compares X-Gitlab-Token with
// secret. An empty secret rejects every delivery.
func NewGitLabHandler(secret string, fn GitLabEventHandler) http.Handler {
	return handler[GitLabEvent]{
		verify: func(h http.Header, _ []byte) error {
			token := h.Get("X-Gitlab-Token")
			switch {
			case token == "":
				return errMissingCredential
			case secret == "", subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1:
				return errBadCredential
			}
			return nil
		},
		decode: func(h http.Header, body []byte) (*GitLabEvent, error) {
			event := &GitLabEvent{EventType: h.Get("X-Gitlab-Event"), RawPayload: body}
			if err := json.Unmarshal(body, event); err != nil {
				return nil, err
			}
			return event, nil
		},
		handle: fn,
	}
}
