package delivery

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

// Service is the external newsletter delivery collaborator. Failures are
// reported to the caller and never retried here.
type Service interface {
	Send(ctx context.Context, subject, body, language string) (string, error)
}

var _ Service = (*Client)(nil)

// Client posts rendered digests to a mail delivery API.
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

func NewClient(endpoint, apiKey string) *Client {
	return &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) Send(ctx context.Context, subject, body, language string) (string, error) {
	if c.endpoint == "" {
		return "", fmt.Errorf("delivery client misconfigured")
	}

	payload, err := json.Marshal(map[string]string{
		"subject":  subject,
		"html":     body,
		"language": language,
	})
	if err != nil {
		return "", fmt.Errorf("marshal delivery payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send digest: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("delivery error %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode delivery response: %w", err)
	}

	return result.ID, nil
}
