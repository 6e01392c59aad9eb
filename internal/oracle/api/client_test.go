package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/drewdunne/prbounty/internal/config"
	"github.com/drewdunne/prbounty/internal/oracle"
)

const answer = `{"category":"medium","final_score":5.5,"metric_scores":{"code_size":5,"review_cycles":5,"review_time":5,"first_review_wait":5,"review_depth":5,"code_quality":5},"reasoning":"ok"}`

func TestClient_Categorize(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/categorize" {
			t.Errorf("request = %s %s, want POST /categorize", r.Method, r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer secret" {
			t.Errorf("Authorization = %q", auth)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(answer))
	}))
	defer server.Close()

	c := New(server.URL, "secret", WithModel("scorer-v2"))
	req := oracle.Request{PullRequest: oracle.PullRequestSummary{Owner: "acme", Repo: "widgets", Number: 7}}

	body, err := c.Categorize(context.Background(), req)
	if err != nil {
		t.Fatalf("Categorize() error = %v", err)
	}
	if string(body) != answer {
		t.Errorf("body = %s", body)
	}
	if got["model"] != "scorer-v2" {
		t.Errorf("model = %v, want scorer-v2", got["model"])
	}
	pr, _ := got["pull_request"].(map[string]any)
	if pr["repo"] != "widgets" {
		t.Errorf("pull_request.repo = %v, want widgets", pr["repo"])
	}
}

func TestClient_Retry(t *testing.T) {
	var attempts int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempt := atomic.AddInt32(&attempts, 1)
		if attempt < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(answer))
	}))
	defer server.Close()

	c := New(server.URL, "k", WithRetries(2))

	if _, err := c.Categorize(context.Background(), oracle.Request{}); err != nil {
		t.Fatalf("Categorize() error = %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestClient_ExhaustedRetries(t *testing.T) {
	tests := []struct {
		retries int
		want    int32
	}{
		{0, 1},
		{1, 2},
		{2, 3},
	}

	for _, tt := range tests {
		var attempts int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&attempts, 1)
			w.WriteHeader(http.StatusServiceUnavailable)
		}))

		c := New(server.URL, "k", WithRetries(tt.retries))
		if _, err := c.Categorize(context.Background(), oracle.Request{}); err == nil {
			t.Errorf("retries=%d: Categorize() should error after exhausting retries", tt.retries)
		}
		if got := atomic.LoadInt32(&attempts); got != tt.want {
			t.Errorf("retries=%d: attempts = %d, want %d", tt.retries, got, tt.want)
		}
		server.Close()
	}
}

func TestClient_AcceptsAny2xx(t *testing.T) {
	for _, status := range []int{http.StatusOK, http.StatusCreated, http.StatusAccepted} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
			w.Write([]byte(answer))
		}))

		body, err := New(server.URL, "k").Categorize(context.Background(), oracle.Request{})
		if err != nil {
			t.Errorf("status %d: Categorize() error = %v", status, err)
		} else if string(body) != answer {
			t.Errorf("status %d: body = %s", status, body)
		}
		server.Close()
	}
}

func TestClient_RejectsNon2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusMultipleChoices)
		w.Write([]byte(answer))
	}))
	defer server.Close()

	if _, err := New(server.URL, "k").Categorize(context.Background(), oracle.Request{}); err == nil {
		t.Error("Categorize() should error on 3xx")
	}
}

func TestClient_NoRetryOn4xx(t *testing.T) {
	var attempts int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": "bad request"}`))
	}))
	defer server.Close()

	c := New(server.URL, "k", WithRetries(3))

	if _, err := c.Categorize(context.Background(), oracle.Request{}); err == nil {
		t.Error("Categorize() should error on 4xx")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 (no retry on 4xx)", attempts)
	}
}

func TestClient_ContextDeadline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	c := New(server.URL, "k", WithRetries(3))
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	if _, err := c.Categorize(ctx, oracle.Request{}); err == nil {
		t.Fatal("Categorize() should fail once the context expires")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Categorize() took %v, want it to stop at the deadline", elapsed)
	}
}

func TestRegistered(t *testing.T) {
	client, err := oracle.NewClient(context.Background(), config.OracleConfig{
		Strategy: string(oracle.StrategyAPI),
		BaseURL:  "http://oracle.internal",
	})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	if _, ok := client.(*Client); !ok {
		t.Errorf("NewClient() = %T, want *api.Client", client)
	}
}
