package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/djec2006-hash/News-Flow-sub001/internal/config"
	"github.com/djec2006-hash/News-Flow-sub001/internal/models"
)

// Client calls an OpenAI-compatible chat completions API and parses the
// structured section payload out of the reply.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	log        *slog.Logger
}

// Request carries one structured generation call.
type Request struct {
	System string
	Prompt string
}

// SectionResult is the structured output contract with the generation model.
type SectionResult struct {
	Title      string   `json:"title"`
	Content    string   `json:"content"`
	Sentiment  string   `json:"sentiment"`
	KeyFigures []string `json:"key_figures"`
}

func NewClient(cfg config.Config, log *slog.Logger) *Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &Client{
		apiKey:  cfg.OpenAIAPIKey,
		baseURL: strings.TrimRight(cfg.OpenAIBaseURL, "/"),
		model:   cfg.OpenAIModel,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: log,
	}
}

// Complete runs one generation call and returns the parsed section. A reply
// that cannot be parsed into the expected shape is an error, never a default.
func (c *Client) Complete(ctx context.Context, req Request) (*SectionResult, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, fmt.Errorf("prompt cannot be empty")
	}

	messages := []map[string]string{}
	if req.System != "" {
		messages = append(messages, map[string]string{"role": "system", "content": req.System})
	}
	messages = append(messages, map[string]string{"role": "user", "content": req.Prompt})

	payload := map[string]any{
		"model":           c.model,
		"messages":        messages,
		"response_format": map[string]string{"type": "json_object"},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal completion payload: %w", err)
	}

	fullURL := c.baseURL + "/v1/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, fullURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("post completion: %w", err)
	}
	defer resp.Body.Close()

	rawBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode >= 300 {
		if c.log != nil {
			c.log.Error("completion failed", "status", resp.StatusCode, "body", truncateBody(rawBody))
		}
		return nil, fmt.Errorf("completion error: status=%d body=%s", resp.StatusCode, truncateBody(rawBody))
	}

	var completionResp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(rawBody, &completionResp); err != nil {
		return nil, fmt.Errorf("decode completion response: %w (body=%s)", err, truncateBody(rawBody))
	}
	if len(completionResp.Choices) == 0 {
		return nil, fmt.Errorf("completion returned no choices")
	}

	return parseSection(completionResp.Choices[0].Message.Content)
}

func parseSection(content string) (*SectionResult, error) {
	var result SectionResult
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		return nil, fmt.Errorf("parse section payload: %w (content=%s)", err, truncateBody([]byte(content)))
	}
	if strings.TrimSpace(result.Title) == "" || strings.TrimSpace(result.Content) == "" {
		return nil, fmt.Errorf("section payload missing title or content")
	}

	result.Sentiment = strings.ToLower(strings.TrimSpace(result.Sentiment))
	switch models.Sentiment(result.Sentiment) {
	case models.SentimentPositive, models.SentimentNeutral, models.SentimentNegative:
	default:
		return nil, fmt.Errorf("section payload has invalid sentiment %q", result.Sentiment)
	}

	return &result, nil
}

func truncateBody(body []byte) string {
	const limit = 512
	s := strings.TrimSpace(string(body))
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "…"
}
