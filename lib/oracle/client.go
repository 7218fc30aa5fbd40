package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var ErrNoURL = errors.New("oracle: no URL defined")

// Client speaks JSON over HTTP to the node's local benchmark daemon, which
// holds the node key material and performs the actual decryption.
type Client struct {
	base string
	hc   *http.Client
}

type ClientOptions struct {
	// URL is the base URL of the benchmark daemon, eg http://127.0.0.1:16225.
	URL string

	// HTTPClient overrides the default HTTP client, mostly for tests.
	HTTPClient *http.Client
}

func NewClient(opts ClientOptions) (*Client, error) {
	if opts.URL == "" {
		return nil, ErrNoURL
	}

	if _, err := url.Parse(opts.URL); err != nil {
		return nil, fmt.Errorf("oracle: can't parse URL %q: %w", opts.URL, err)
	}

	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}

	return &Client{
		base: strings.TrimSuffix(opts.URL, "/"),
		hc:   hc,
	}, nil
}

func (c *Client) Decrypt(ctx context.Context, decReq Request) (Response, error) {
	body, err := json.Marshal(decReq)
	if err != nil {
		return Response{}, fmt.Errorf("oracle: can't encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/decrypt", bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("oracle: can't build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("oracle: decrypt call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Response{}, fmt.Errorf("oracle: unexpected status code %d", resp.StatusCode)
	}

	var result Response
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Response{}, fmt.Errorf("oracle: can't decode response: %w", err)
	}

	return result, nil
}
