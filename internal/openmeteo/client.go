// Package openmeteo provides a client for the Open-Meteo weather forecast API.
package openmeteo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/meteocache/meteocache/internal/provider/resilience"
)

const (
	// ProviderName identifies this forecast provider.
	ProviderName = "open-meteo"

	// DefaultBaseURL is the Open-Meteo API base URL.
	DefaultBaseURL = "https://api.open-meteo.com/v1"

	// maxErrorBody bounds how much of a failed response is read for its reason.
	maxErrorBody = 4 << 10
)

// Doer sends HTTP requests. Both *http.Client and *resilience.Client satisfy it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the Open-Meteo client.
type ClientConfig struct {
	// BaseURL is the API base URL (optional, defaults to DefaultBaseURL).
	BaseURL string

	// HTTPClient sends the requests (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient Doer

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is an Open-Meteo forecast API client.
// It performs exactly one request per call; retries, if any, are the
// business of the HTTPClient it was given.
type Client struct {
	baseURL    string
	httpClient Doer
	logger     zerolog.Logger
}

// NewClient creates a new Open-Meteo client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.DefaultClientConfig(ProviderName))
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// FetchForecast requests a forecast for the given coordinates and returns
// the response body unchanged. The body is only returned once it has been
// read completely and verified to be a single JSON value.
func (c *Client) FetchForecast(ctx context.Context, lat, lon Coordinates, opts *ForecastOptions) (json.RawMessage, error) {
	params, err := BuildQuery(lat, lon, opts)
	if err != nil {
		return nil, err
	}

	url := c.baseURL + "/forecast?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %w", ErrInvalidOptions, err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug().Err(err).Dur("duration", time.Since(start)).Msg("forecast request failed")
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	c.logger.Debug().
		Str("provider", ProviderName).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("forecast response received")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{
			StatusCode: resp.StatusCode,
			Reason:     readReason(resp.Body),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %w", ErrTransport, err)
	}

	if !json.Valid(body) {
		return nil, fmt.Errorf("%w: body is not valid JSON (%d bytes)", ErrDecode, len(body))
	}

	return json.RawMessage(body), nil
}

// errorResponse is the body Open-Meteo sends with 4xx and some 5xx responses.
type errorResponse struct {
	Error  bool   `json:"error"`
	Reason string `json:"reason"`
}

func readReason(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, maxErrorBody))
	if err != nil || len(data) == 0 {
		return ""
	}

	var errResp errorResponse
	if err := json.Unmarshal(data, &errResp); err != nil {
		return ""
	}
	return errResp.Reason
}
