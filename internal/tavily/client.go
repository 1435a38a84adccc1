package tavily

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/djec2006-hash/News-Flow-sub001/internal/config"
	"github.com/djec2006-hash/News-Flow-sub001/internal/models"
)

// Client calls the Tavily news search API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	log        *slog.Logger
}

// SearchOptions bound one search call.
type SearchOptions struct {
	Days       int
	MaxResults int
}

func NewClient(cfg config.Config, log *slog.Logger) *Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &Client{
		apiKey:  cfg.TavilyAPIKey,
		baseURL: strings.TrimRight(cfg.TavilyBaseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: log,
	}
}

// Search runs one news search and returns a bounded article list.
func (c *Client) Search(ctx context.Context, query string, opts SearchOptions) ([]models.Article, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}

	days := opts.Days
	if days <= 0 {
		days = 7
	}
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = 5
	}
	if maxResults > 20 {
		maxResults = 20
	}

	payload := map[string]any{
		"query":       query,
		"topic":       "news",
		"days":        days,
		"max_results": maxResults,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal search payload: %w", err)
	}

	fullURL := c.baseURL + "/search"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fullURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post tavily: %w", err)
	}
	defer resp.Body.Close()

	rawBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode >= 300 {
		if c.log != nil {
			c.log.Error("tavily search failed", "status", resp.StatusCode, "body", truncateBody(rawBody))
		}
		return nil, fmt.Errorf("tavily error: status=%d body=%s", resp.StatusCode, truncateBody(rawBody))
	}

	var searchResp struct {
		Results []struct {
			Title         string `json:"title"`
			URL           string `json:"url"`
			Source        string `json:"source"`
			PublishedDate string `json:"published_date"`
			Content       string `json:"content"`
		} `json:"results"`
	}
	if err := json.Unmarshal(rawBody, &searchResp); err != nil {
		return nil, fmt.Errorf("decode search response: %w (body=%s)", err, truncateBody(rawBody))
	}

	articles := make([]models.Article, 0, len(searchResp.Results))
	for _, r := range searchResp.Results {
		source := r.Source
		if source == "" {
			source = hostOf(r.URL)
		}
		articles = append(articles, models.Article{
			Title:         r.Title,
			URL:           r.URL,
			Source:        source,
			PublishedDate: r.PublishedDate,
			Excerpt:       r.Content,
		})
	}
	return articles, nil
}

func hostOf(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return raw
	}
	return parsed.Host
}

func truncateBody(body []byte) string {
	const limit = 512
	s := strings.TrimSpace(string(body))
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "…"
}
