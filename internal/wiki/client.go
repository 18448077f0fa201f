// Package wiki fetches plain-text encyclopedia extracts used as grounding
// context for question generation. Lookups are best effort: every failure
// yields an empty string.
package wiki

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

const (
	DefaultBaseURL = "https://en.wikipedia.org/w/api.php"
	MaxChars       = 8000
	userAgent      = "QuizBuilder/1.0 (Educational Quiz Application; contact@example.com)"
)

type Client struct {
	http    *http.Client
	baseURL string
	log     *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.http = h } }
func WithLogger(l *slog.Logger) Option     { return func(c *Client) { c.log = l } }

func New(baseURL string, timeout time.Duration, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		http:    &http.Client{Timeout: timeout},
		baseURL: baseURL,
		log:     slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type searchResponse struct {
	Query struct {
		Search []struct {
			Title string `json:"title"`
		} `json:"search"`
	} `json:"query"`
}

type extractResponse struct {
	Query struct {
		Pages map[string]struct {
			Extract string `json:"extract"`
		} `json:"pages"`
	} `json:"query"`
}

// Lookup searches for topic and returns the top hit's extract, truncated to
// MaxChars. It returns "" when nothing usable comes back.
func (c *Client) Lookup(ctx context.Context, topic string) string {
	if c == nil {
		return ""
	}
	var sr searchResponse
	err := c.get(ctx, url.Values{
		"action":   {"query"},
		"list":     {"search"},
		"srsearch": {topic},
		"format":   {"json"},
		"srlimit":  {"3"},
	}, &sr)
	if err != nil {
		c.log.Warn("wiki search failed", "topic", topic, "err", err)
		return ""
	}
	if len(sr.Query.Search) == 0 {
		c.log.Info("wiki: no results", "topic", topic)
		return ""
	}

	var er extractResponse
	err = c.get(ctx, url.Values{
		"action":      {"query"},
		"titles":      {sr.Query.Search[0].Title},
		"prop":        {"extracts"},
		"explaintext": {"1"},
		"format":      {"json"},
		"exlimit":     {"1"},
	}, &er)
	if err != nil {
		c.log.Warn("wiki extract failed", "topic", topic, "err", err)
		return ""
	}
	// a single title is requested, so at most one page comes back
	var content string
	for _, p := range er.Query.Pages {
		content = p.Extract
		break
	}
	return truncate(content, MaxChars)
}

func (c *Client) get(ctx context.Context, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", userAgent)
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
