package bgg

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// MaxIDsPerRequest is the documented per-request id limit of the thing
// endpoint. Callers partition larger id sets before calling FetchThings.
const MaxIDsPerRequest = 20

type Client struct {
	host       string
	httpClient *http.Client
}

type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.Status, e.Body)
}

func NewClient(httpClient *http.Client, host string) *Client {
	if host == "" {
		host = "https://boardgamegeek.com"
	}
	host = strings.TrimRight(host, "/")
	return &Client{
		host:       host,
		httpClient: httpClient,
	}
}

func (c *Client) doRequest(ctx context.Context, path string, query url.Values) ([]byte, error) {
	fullURL := c.host + path
	if len(query) > 0 {
		fullURL = fullURL + "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/xml")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	// The source answers 202 while it is still materializing the export;
	// that is a retry-later condition, not a payload.
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Status: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

// FetchThings retrieves one batch of catalog items by id. The caller must
// pass at most MaxIDsPerRequest ids.
func (c *Client) FetchThings(ctx context.Context, ids []string) ([]Thing, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if len(ids) > MaxIDsPerRequest {
		return nil, fmt.Errorf("at most %d ids per request, got %d", MaxIDsPerRequest, len(ids))
	}
	query := url.Values{}
	query.Set("id", strings.Join(ids, ","))
	query.Set("stats", "1")
	body, err := c.doRequest(ctx, "/xmlapi2/thing", query)
	if err != nil {
		return nil, err
	}
	return parseThings(body)
}
