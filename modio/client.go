package modio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"modio-mod-indexer/config"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

const (
	defaultAPIURL  = "https://api.mod.io/v1"
	defaultTimeout = 30 * time.Second
	// pageSize is the largest page mod.io serves.
	pageSize = 100
)

// StatusError is returned for a non-2xx response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("api request failed: status %d, body: %s", e.StatusCode, e.Body)
}

// Client handles communication with the mod.io API.
type Client struct {
	BaseURL     string
	GameID      uint32
	AccessToken string
	APIKey      string
	UserAgent   string
	HTTPClient  *http.Client
	// DownloadClient has no overall timeout; archive downloads may be large.
	DownloadClient *http.Client

	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

// NewClient creates a new mod.io API client using the provided configuration.
func NewClient(cfg config.Config) (*Client, error) {
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("USERAGENT is not configured")
	}
	if cfg.ModioAccessToken == "" && cfg.ModioAPIKey == "" {
		return nil, fmt.Errorf("MODIO_ACCESS_TOKEN or MODIO_API_KEY must be set")
	}

	baseURL := cfg.ModioAPIURL
	if baseURL == "" {
		baseURL = defaultAPIURL
	}
	rps := cfg.RateLimitRPS
	if rps <= 0 {
		rps = 1
	}
	burst := cfg.RateLimitBurst
	if burst <= 0 {
		burst = 1
	}

	return &Client{
		BaseURL:        baseURL,
		GameID:         cfg.ModioGameID,
		AccessToken:    cfg.ModioAccessToken,
		APIKey:         cfg.ModioAPIKey,
		UserAgent:      cfg.UserAgent,
		HTTPClient:     &http.Client{Timeout: defaultTimeout},
		DownloadClient: &http.Client{},
		limiter:        rate.NewLimiter(rate.Limit(rps), burst),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "modio",
			MaxRequests: 1,
			Timeout:     time.Minute,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			// Client errors say nothing about the health of the API.
			IsSuccessful: func(err error) bool {
				var statusErr *StatusError
				if errors.As(err, &statusErr) {
					return statusErr.StatusCode < http.StatusInternalServerError && statusErr.StatusCode != http.StatusTooManyRequests
				}
				return err == nil || errors.Is(err, context.Canceled)
			},
		}),
	}, nil
}

func (c *Client) makeRequest(ctx context.Context, path string, queryParams url.Values, isBinary bool) (*http.Response, error) {
	fullURL := c.BaseURL + path
	if isBinary {
		// For binary downloads, the 'path' is expected to be the full URL already
		fullURL = path
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if !isBinary {
		if queryParams == nil {
			queryParams = url.Values{}
		}
		if c.AccessToken != "" {
			req.Header.Set("Authorization", "Bearer "+c.AccessToken)
		} else {
			queryParams.Set("api_key", c.APIKey)
		}
		req.URL.RawQuery = queryParams.Encode()
		req.Header.Set("Accept", "application/json")
	} else {
		req.Header.Set("Accept", "application/octet-stream")
	}
	req.Header.Set("User-Agent", c.UserAgent)

	httpClient := c.HTTPClient
	if isBinary && c.DownloadClient != nil {
		httpClient = c.DownloadClient
	}

	out, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to execute request: %w", err)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(bodyBytes)}
		}
		return resp, nil
	})
	if err != nil {
		return nil, err
	}
	return out.(*http.Response), nil
}

func (c *Client) getJSON(ctx context.Context, path string, queryParams url.Values, target interface{}) error {
	resp, err := c.makeRequest(ctx, path, queryParams, false)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("failed to decode json response: %w", err)
	}
	return nil
}

// ListVisibleMods pages through every public or hidden mod of the game.
func (c *Client) ListVisibleMods(ctx context.Context) ([]Mod, error) {
	var mods []Mod
	for offset := 0; ; {
		params := url.Values{}
		params.Set("visible-in", "0,1")
		params.Set("_limit", strconv.Itoa(pageSize))
		params.Set("_offset", strconv.Itoa(offset))

		var page ModPage
		if err := c.getJSON(ctx, fmt.Sprintf("/games/%d/mods", c.GameID), params, &page); err != nil {
			return nil, fmt.Errorf("failed to list mods at offset %d: %w", offset, err)
		}
		mods = append(mods, page.Data...)
		offset += page.ResultCount

		if page.ResultCount == 0 || offset >= page.ResultTotal {
			return mods, nil
		}
	}
}

// GetMod retrieves a single mod of the game.
func (c *Client) GetMod(ctx context.Context, id uint32) (*Mod, error) {
	var mod Mod
	if err := c.getJSON(ctx, fmt.Sprintf("/games/%d/mods/%d", c.GameID, id), nil, &mod); err != nil {
		return nil, fmt.Errorf("failed to get mod %d: %w", id, err)
	}
	return &mod, nil
}

// Download opens the binary of f. The caller closes the returned body.
func (c *Client) Download(ctx context.Context, f File) (io.ReadCloser, error) {
	if f.Download.BinaryURL == "" {
		return nil, fmt.Errorf("modfile %d has no download url", f.ID)
	}
	resp, err := c.makeRequest(ctx, f.Download.BinaryURL, nil, true)
	if err != nil {
		return nil, fmt.Errorf("failed to start download for '%s': %w", f.Filename, err)
	}
	return resp.Body, nil
}
