package bling

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/velodata/blingsync/internal/config"
	"go.uber.org/zap"
)

const requestTimeout = 30 * time.Second

// Client talks to the Bling v3 REST API with bearer-token authentication.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	log        *zap.Logger
}

func NewClient(cfg config.Config, log *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: requestTimeout},
		baseURL:    cfg.BlingBaseURL,
		token:      cfg.BlingAPIToken,
		log:        log.Named("bling"),
	}
}

// Page is the envelope of a paginated list endpoint.
type Page struct {
	Data       []json.RawMessage `json:"data"`
	Total      int               `json:"total"`
	TotalPages int               `json:"total_pages"`
}

// DetailResult distinguishes a genuine upstream 404 from a retrieved document.
type DetailResult struct {
	Found    bool
	Document json.RawMessage
}

// StatusError is a non-200 response from the upstream API.
type StatusError struct {
	Resource   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("bling: %s returned HTTP %d: %s", e.Resource, e.StatusCode, e.Body)
}

func (c *Client) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return c.httpClient.Do(req)
}

// ListPage retrieves one page of a collection resource.
func (c *Client) ListPage(ctx context.Context, resource string, page, limit int) (*Page, error) {
	url := fmt.Sprintf("%s/%s?pagina=%d&limite=%d", c.baseURL, resource, page, limit)

	resp, err := c.get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("list %s page %d: %w", resource, page, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("list %s page %d: read body: %w", resource, page, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Resource: resource, StatusCode: resp.StatusCode, Body: truncate(body, 256)}
	}

	var parsed Page
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("list %s page %d: decode: %w", resource, page, err)
	}
	return &parsed, nil
}

// Detail retrieves a single entity. A 404 is reported as not-found, not as an
// error: a deleted upstream entity legitimately has no detail.
func (c *Client) Detail(ctx context.Context, resource string, id int64) (DetailResult, error) {
	url := fmt.Sprintf("%s/%s/%d", c.baseURL, resource, id)

	resp, err := c.get(ctx, url)
	if err != nil {
		return DetailResult{}, fmt.Errorf("detail %s/%d: %w", resource, id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return DetailResult{Found: false}, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return DetailResult{}, fmt.Errorf("detail %s/%d: read body: %w", resource, id, err)
	}
	if resp.StatusCode != http.StatusOK {
		return DetailResult{}, &StatusError{Resource: resource, StatusCode: resp.StatusCode, Body: truncate(body, 256)}
	}

	var parsed struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return DetailResult{}, fmt.Errorf("detail %s/%d: decode: %w", resource, id, err)
	}
	return DetailResult{Found: true, Document: parsed.Data}, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
