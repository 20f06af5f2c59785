// Package content fetches candidate media for a new round from a
// Giphy-compatible random endpoint.
package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Item is one piece of content offered by the provider.
type Item struct {
	ID         string
	AssetURL   string
	PreviewURL string
}

// Provider returns a random candidate on each call.
type Provider interface {
	Random(ctx context.Context) (*Item, error)
}

// ErrIncomplete is returned when the provider answered without an id or
// without usable URLs.
var ErrIncomplete = errors.New("content provider returned incomplete item")

// Client talks to {BaseURL}/v1/gifs/random.
type Client struct {
	BaseURL string
	APIKey  string
	Tag     string
	Rating  string
	HTTP    *http.Client
}

// NewClient builds a Client with a timeout-bound, traced HTTP client.
func NewClient(baseURL, apiKey, tag, rating string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		Tag:     tag,
		Rating:  rating,
		HTTP: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

type randomResponse struct {
	Data struct {
		ID     string `json:"id"`
		Images struct {
			Original struct {
				URL string `json:"url"`
			} `json:"original"`
			FixedHeightStill struct {
				URL string `json:"url"`
			} `json:"fixed_height_still"`
		} `json:"images"`
	} `json:"data"`
}

// Random fetches one random item.
func (c *Client) Random(ctx context.Context) (*Item, error) {
	q := url.Values{}
	q.Set("api_key", c.APIKey)
	if c.Tag != "" {
		q.Set("tag", c.Tag)
	}
	if c.Rating != "" {
		q.Set("rating", c.Rating)
	}
	endpoint := c.BaseURL + "/v1/gifs/random?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("content request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("content provider status %d", resp.StatusCode)
	}

	var body randomResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode content response: %w", err)
	}
	item := &Item{
		ID:         strings.TrimSpace(body.Data.ID),
		AssetURL:   body.Data.Images.Original.URL,
		PreviewURL: body.Data.Images.FixedHeightStill.URL,
	}
	if item.ID == "" || item.AssetURL == "" {
		return nil, ErrIncomplete
	}
	if item.PreviewURL == "" {
		item.PreviewURL = item.AssetURL
	}
	return item, nil
}
