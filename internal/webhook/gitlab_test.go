package webhook

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func gitLabRequest(payload, token string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/gitlab", strings.NewReader(payload))
	if token != "" {
		req.Header.Set("X-Gitlab-Token", token)
	}
	req.Header.Set("X-Gitlab-Event", "Merge Request Hook")
	return req
}

func TestGitLabHandler_ValidToken(t *testing.T) {
	secret := "test-secret-token"
	payload := `{"object_kind":"merge_request","object_attributes":{"action":"merge"}}`

	handler := NewGitLabHandler(secret, func(_ context.Context, event *GitLabEvent) error {
		if event.ObjectKind != "merge_request" {
			t.Errorf("event.ObjectKind = %q, want %q", event.ObjectKind, "merge_request")
		}
		if event.ObjectAttributes.Action != "merge" {
			t.Errorf("event.ObjectAttributes.Action = %q, want %q", event.ObjectAttributes.Action, "merge")
		}
		if event.EventType != "Merge Request Hook" {
			t.Errorf("event.EventType = %q", event.EventType)
		}
		return nil
	})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, gitLabRequest(payload, secret))

	if rec.Code != http.StatusAccepted {
		t.Errorf("status = %d, want %d, body = %s", rec.Code, http.StatusAccepted, rec.Body.String())
	}
}

func TestGitLabHandler_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		secret string
		token  string
	}{
		{"invalid token", "test-secret-token", "wrong-token"},
		{"missing token", "test-secret-token", ""},
		{"no secret configured", "", "anything"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewGitLabHandler(tt.secret, func(context.Context, *GitLabEvent) error {
				t.Error("handler should not be called")
				return nil
			})

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, gitLabRequest(`{"object_kind":"merge_request"}`, tt.token))

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
			}
		})
	}
}

func TestGitLabHandler_Ignored(t *testing.T) {
	secret := "test-secret-token"
	handler := NewGitLabHandler(secret, func(context.Context, *GitLabEvent) error {
		return ErrIgnored
	})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, gitLabRequest(`{"object_kind":"note"}`, secret))

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}
}

func TestGitLabHandler_MalformedPayload(t *testing.T) {
	secret := "test-secret-token"
	handler := NewGitLabHandler(secret, func(context.Context, *GitLabEvent) error {
		t.Error("handler should not be called with a malformed payload")
		return nil
	})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, gitLabRequest(`{"object_kind":`, secret))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}
