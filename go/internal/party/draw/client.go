package draw

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

const drawEndpoint = "/api/party/draw"

// Client calls the selection service over HTTP
type Client struct {
	baseURL string
	client  *http.Client
	headers map[string]string
}

// NewClient creates a client for the service at baseURL
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: timeout,
		},
		headers: map[string]string{"Content-Type": "application/json"},
	}
}

// SetHeader sets a header sent with every request
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// SetAPIKey authenticates requests with a bearer token
func (c *Client) SetAPIKey(key string) {
	if key != "" {
		c.SetHeader("Authorization", "Bearer "+key)
	}
}

// Draw implements Drawer
func (c *Client) Draw(ctx context.Context, req Request) (Result, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return Result{}, fmt.Errorf("failed to marshal draw request: %w", err)
	}

	start := time.Now()
	data, err := c.makeRequest(ctx, http.MethodPost, drawEndpoint, bytes.NewReader(body))
	if err != nil {
		return Result{}, err
	}

	var res Result
	if err := decodeResult(data, &res); err != nil {
		return Result{}, err
	}

	log.Debug().
		Int("locked", len(req.Locked)).
		Dur("duration", time.Since(start)).
		Msg("draw completed")

	return res, nil
}

func (c *Client) makeRequest(ctx context.Context, method, endpoint string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		responseBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("draw service returned status code: %d, response: %s", resp.StatusCode, string(responseBody))
	}

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return responseBody, nil
}

// decodeResult requires exactly three slot entries, any of which may be null
func decodeResult(data []byte, res *Result) error {
	var raw struct {
		Slots []json.RawMessage `json:"slots"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	if len(raw.Slots) != len(res.Slots) {
		return fmt.Errorf("%w: expected %d slots, got %d", ErrBadResponse, len(res.Slots), len(raw.Slots))
	}
	if err := json.Unmarshal(data, res); err != nil {
		return fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	for i, d := range res.Slots {
		if d != nil && d.ID == "" {
			return fmt.Errorf("%w: slot %d has no dish id", ErrBadResponse, i)
		}
	}
	return nil
}
