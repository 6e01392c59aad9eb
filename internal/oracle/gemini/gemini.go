// Package gemini implements the oracle with a Gemini model.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/drewdunne/prbounty/internal/config"
	"github.com/drewdunne/prbounty/internal/oracle"
)

const defaultModel = "gemini-1.5-flash"

var _ oracle.Client = (*Client)(nil)

func init() {
	oracle.Register(oracle.StrategyGemini, func(ctx context.Context, cfg config.OracleConfig) (oracle.Client, error) {
		return New(ctx, cfg.APIKey, cfg.Model)
	})
}

// generateFunc returns the model's text answer for a prompt.
type generateFunc func(ctx context.Context, prompt string) (string, error)

// Client asks a Gemini model to categorize a pull request.
type Client struct {
	client   *genai.Client
	generate generateFunc
}

// New creates a Gemini-backed oracle client.
func New(ctx context.Context, apiKey, modelName string) (*Client, error) {
	if modelName == "" {
		modelName = defaultModel
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(0.1)
	model.ResponseMIMEType = "application/json"

	return &Client{
		client: client,
		generate: func(ctx context.Context, prompt string) (string, error) {
			resp, err := model.GenerateContent(ctx, genai.Text(prompt))
			if err != nil {
				return "", err
			}
			return responseText(resp), nil
		},
	}, nil
}

// Close releases the underlying client.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}

// Categorize prompts the model and returns the JSON object it produced.
func (c *Client) Categorize(ctx context.Context, req oracle.Request) ([]byte, error) {
	prompt, err := buildPrompt(req)
	if err != nil {
		return nil, err
	}

	text, err := c.generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("generating content: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("empty response from gemini")
	}

	return []byte(ExtractJSON(text)), nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	var b strings.Builder
	if resp == nil {
		return ""
	}
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				b.WriteString(string(text))
			}
		}
	}
	return b.String()
}

func buildPrompt(req oracle.Request) (string, error) {
	payload, err := json.MarshalIndent(req, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	return fmt.Sprintf(`You review merged pull requests for an open source bounty program.
Rate the contribution below. Return a single JSON object with:
- category: one of "easy", "medium", "hard", derived from final_score rounded to one decimal: "easy" below thresholds.medium, "medium" below thresholds.hard, otherwise "hard"
- final_score: number from 0 to 10
- metric_scores: object with code_size, review_cycles, review_time, first_review_wait, review_depth, code_quality, each a number from 0 to 10
- reasoning: one short paragraph

The locally computed metric scores and weights are included as a baseline. Adjust them only when the pull request content justifies it.

Pull request:
%s

Respond with only valid JSON, no other text.`, payload), nil
}
