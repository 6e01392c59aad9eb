package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/go-github/v60/github"
)

// GitHubEvent is an authenticated GitHub delivery.
type GitHubEvent struct {
	EventType  string
	DeliveryID string
	Action     string `json:"action"`
	Number     int    `json:"number"`
	RawPayload []byte
}

// GitHubEventHandler is called for every authenticated GitHub delivery.
type GitHubEventHandler func(ctx context.Context, event *GitHubEvent) error

// NewGitHubHandler returns a handler that checks X-Hub-Signature-256
// against secret. An empty secret rejects every delivery.
func NewGitHubHandler(secret string, fn GitHubEventHandler) http.Handler {
	return handler[GitHubEvent]{
		verify: func(h http.Header, body []byte) error {
			return verifyHubSignature(secret, h.Get("X-Hub-Signature-256"), body)
		},
		decode: decodeGitHub,
		handle: fn,
	}
}

func decodeGitHub(h http.Header, body []byte) (*GitHubEvent, error) {
	event := &GitHubEvent{
		EventType:  h.Get("X-GitHub-Event"),
		DeliveryID: h.Get("X-GitHub-Delivery"),
		RawPayload: body,
	}
	if err := json.Unmarshal(body, event); err != nil {
		return nil, err
	}
	return event, nil
}

// verifyHubSignature checks a "sha256=<hex>" HMAC of body. Legacy sha1
// signatures are refused.
func verifyHubSignature(secret, signature string, body []byte) error {
	if signature == "" {
		return errMissingCredential
	}
	if secret == "" || !strings.HasPrefix(signature, "sha256=") {
		return errBadCredential
	}
	if err := github.ValidateSignature(signature, body, []byte(secret)); err != nil {
		return errBadCredential
	}
	return nil
}
