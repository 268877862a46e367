package summarizer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ReadOriginal scores how much the full article rewards a click-through.
type ReadOriginal struct {
	Score         int    `json:"score"`
	Reason        string `json:"reason"`
	WhoShouldRead string `json:"whoShouldRead"`
}

// Summary is the generated editorial payload for one item.
type Summary struct {
	EditorNote   string       `json:"editorNote"`
	KeyPoints    []string     `json:"keyPoints"`
	ReadOriginal ReadOriginal `json:"readOriginal"`
}

// Request carries what the summarization service needs about one item.
type Request struct {
	Title      string `json:"title"`
	PlainText  string `json:"plainTextContent"`
	SourceName string `json:"sourceName"`
}

// Service is the external summarization collaborator. Failures are per-item;
// the publishing batch tolerates them and persists what succeeded.
type Service interface {
	Summarize(ctx context.Context, req Request, language string) (*Summary, error)
}

var _ Service = (*Client)(nil)

// Client talks to an OpenAI-compatible chat completions endpoint.
type Client struct {
	endpoint   string
	model      string
	apiKey     string
	httpClient *http.Client
}

func NewClient(endpoint, model, apiKey string) *Client {
	return &Client{
		endpoint: endpoint,
		model:    model,
		apiKey:   apiKey,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

const systemPrompt = `You are a newsletter editor. Given an article, respond with a single JSON object:
{"editorNote": "...", "keyPoints": ["..."], "readOriginal": {"score": 1-10, "reason": "...", "whoShouldRead": "..."}}
Write editorNote and keyPoints in the requested language. Respond with JSON only.`

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *Client) Summarize(ctx context.Context, req Request, language string) (*Summary, error) {
	if c.apiKey == "" || c.endpoint == "" || c.model == "" {
		return nil, fmt.Errorf("summarizer client misconfigured")
	}

	userPayload, err := json.Marshal(map[string]string{
		"title":      req.Title,
		"content":    req.PlainText,
		"sourceName": req.SourceName,
		"language":   language,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal summarizer payload: %w", err)
	}

	body, err := json.Marshal(map[string]any{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": string(userPayload)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal summarizer request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("summarize request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("summarizer error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode summarizer response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("summarizer returned no choices")
	}

	summary, err := parseSummary(parsed.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}

	return summary, nil
}

// parseSummary tolerates models that wrap the JSON in markdown fences.
func parseSummary(content string) (*Summary, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var summary Summary
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &summary); err != nil {
		return nil, fmt.Errorf("parse summary JSON: %w", err)
	}

	if summary.EditorNote == "" && len(summary.KeyPoints) == 0 {
		return nil, fmt.Errorf("summary is empty")
	}

	return &summary, nil
}
