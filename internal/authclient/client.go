// Package authclient lets other storefront services ask this service whether
// a browser session is still valid.
package authclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Skotchmaster/shop_auth/internal/tokens"
	"github.com/Skotchmaster/shop_auth/internal/transport"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(authServiceURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(authServiceURL, "/"),
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

func statusPath(track tokens.Track) string {
	if track == tokens.Admin {
		return "/api/v1/admin/auth/status"
	}
	return "/api/v1/auth/status"
}

// Status forwards the caller's cookies for track. Empty tokens are not sent.
func (c *Client) Status(ctx context.Context, track tokens.Track, accessToken, refreshToken string) (*transport.StatusResponse, error) {
	if !track.Valid() {
		return nil, fmt.Errorf("unknown track %d", track)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+statusPath(track), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if accessToken != "" {
		req.AddCookie(&http.Cookie{Name: track.AccessCookie(), Value: accessToken})
	}
	if refreshToken != "" {
		req.AddCookie(&http.Cookie{Name: track.RefreshCookie(), Value: refreshToken})
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status failed with status: %d", resp.StatusCode)
	}

	var result transport.StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &result, nil
}
