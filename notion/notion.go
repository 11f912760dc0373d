// CLAUDE:SUMMARY Stateless Notion API client: create/update pages, query by URL, append blocks, add comments.
// Package notion implements a minimal client for the Notion HTTP API,
// covering the five operations the clipper needs: create a page in a
// database, update a page's properties, query a database by link URL,
// append child blocks (images or paragraphs) to a page, and add a comment.
//
// The client is stateless; every call builds one request and parses one
// response. Credentials are injected at construction so callers can build
// a fresh client whenever the stored settings change.
package notion

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
)

// APIVersion is sent as the Notion-Version header on every request.
const APIVersion = "2022-06-28"

const defaultBaseURL = "https://api.notion.com"

// Client talks to the Notion API on behalf of one integration token.
type Client struct {
	apiKey     string
	databaseID string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option customises a Client.
type Option func(*Client)

// WithBaseURL overrides the API base URL (used by tests).
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// WithTimeout sets the HTTP timeout on the default client. Default: 30s.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithLogger overrides the default slog logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a Client for the given integration token and target database.
func New(apiKey, databaseID string, opts ...Option) *Client {
	c := &Client{
		apiKey:     apiKey,
		databaseID: databaseID,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// APIError is a non-2xx response from the Notion API.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("notion: HTTP %d: %s", e.Status, e.Body)
}

// Page is the subset of a Notion page object the clipper cares about,
// plus the raw response for callers that want the full body.
type Page struct {
	ID          string `json:"id"`
	CreatedTime string `json:"created_time"`

	Raw json.RawMessage `json:"-"`
}

// QueryPage is one match from a database query.
type QueryPage struct {
	ID          string `json:"id"`
	CreatedTime string `json:"created_time"`
	Properties  struct {
		Description struct {
			RichText []struct {
				PlainText string `json:"plain_text"`
			} `json:"rich_text"`
		} `json:"Description"`
	} `json:"properties"`
}

// DescriptionText returns the plain text of the Description property, if any.
func (p *QueryPage) DescriptionText() string {
	rt := p.Properties.Description.RichText
	if len(rt) == 0 {
		return ""
	}
	return rt[0].PlainText
}

// CreatePage creates a new page in the configured database.
func (c *Client) CreatePage(ctx context.Context, data PageData) (*Page, error) {
	body := map[string]any{
		"parent":     map[string]any{"database_id": c.databaseID},
		"properties": buildProperties(data),
	}
	raw, err := c.do(ctx, http.MethodPost, "/v1/pages", body)
	if err != nil {
		return nil, err
	}
	return parsePage(raw)
}

// UpdatePage replaces the clipper-managed properties of an existing page.
func (c *Client) UpdatePage(ctx context.Context, pageID string, data PageData) (*Page, error) {
	body := map[string]any{
		"properties": buildProperties(data),
	}
	raw, err := c.do(ctx, http.MethodPatch, "/v1/pages/"+pageID, body)
	if err != nil {
		return nil, err
	}
	return parsePage(raw)
}

// QueryByURL returns the pages whose Link property equals url exactly.
func (c *Client) QueryByURL(ctx context.Context, url string) ([]QueryPage, error) {
	body := map[string]any{
		"filter": map[string]any{
			"property": "Link",
			"url":      map[string]any{"equals": url},
		},
	}
	raw, err := c.do(ctx, http.MethodPost, "/v1/databases/"+c.databaseID+"/query", body)
	if err != nil {
		return nil, err
	}
	var result struct {
		Results []QueryPage `json:"results"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("notion: decode query response: %w", err)
	}
	return result.Results, nil
}

// AppendImageBlocks appends one external image block per URL, in order,
// to the page's children.
func (c *Client) AppendImageBlocks(ctx context.Context, pageID string, urls []string) (json.RawMessage, error) {
	blocks := make([]any, 0, len(urls))
	for _, u := range urls {
		blocks = append(blocks, map[string]any{
			"object": "block",
			"type":   "image",
			"image": map[string]any{
				"type":     "external",
				"external": map[string]any{"url": u},
			},
		})
	}
	return c.do(ctx, http.MethodPatch, "/v1/blocks/"+pageID+"/children", map[string]any{"children": blocks})
}

// AppendTextBlocks splits text into paragraphs (one per non-blank line,
// order preserved) and appends them as paragraph blocks. Returns the
// number of blocks submitted.
func (c *Client) AppendTextBlocks(ctx context.Context, pageID, text string) (int, json.RawMessage, error) {
	paragraphs := SplitParagraphs(text)
	blocks := make([]any, 0, len(paragraphs))
	for _, p := range paragraphs {
		blocks = append(blocks, map[string]any{
			"object": "block",
			"type":   "paragraph",
			"paragraph": map[string]any{
				"rich_text": []any{
					map[string]any{"text": map[string]any{"content": p}},
				},
			},
		})
	}
	raw, err := c.do(ctx, http.MethodPatch, "/v1/blocks/"+pageID+"/children", map[string]any{"children": blocks})
	if err != nil {
		return 0, nil, err
	}
	return len(blocks), raw, nil
}

// AddComment posts a comment on a page.
func (c *Client) AddComment(ctx context.Context, pageID, text string) (json.RawMessage, error) {
	body := map[string]any{
		"parent": map[string]any{"page_id": pageID},
		"rich_text": []any{
			map[string]any{"text": map[string]any{"content": text}},
		},
	}
	return c.do(ctx, http.MethodPost, "/v1/comments", body)
}

// SplitParagraphs splits text on line breaks and drops blank lines.
func SplitParagraphs(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		out = append(out, line)
	}
	return out
}

func parsePage(raw json.RawMessage) (*Page, error) {
	var p Page
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("notion: decode page response: %w", err)
	}
	p.Raw = raw
	return &p, nil
}

// do sends one JSON request and returns the raw response body.
// Non-2xx responses become *APIError.
func (c *Client) do(ctx context.Context, method, path string, payload any) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("notion: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Notion-Version", APIVersion)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("notion: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("notion: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("notion: request failed", "method", method, "path", path, "status", resp.StatusCode)
		return nil, &APIError{Status: resp.StatusCode, Body: string(data)}
	}
	return data, nil
}
