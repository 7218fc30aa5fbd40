// Package daemonrpc talks to the node's chain daemon over its JSON-RPC
// surface. Only the calls the agent consumes are implemented; results are
// cached through the storage substrate so a flapping daemon does not take
// the administrative API down with it.
package daemonrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/fluxnode/fluxosd"
	"github.com/fluxnode/fluxosd/internal"
	"github.com/fluxnode/fluxosd/lib/store"
)

var (
	ErrNoURL = errors.New("daemonrpc: no URL defined")

	// ErrNoHeight is returned when the daemon is unreachable and no height
	// was ever observed.
	ErrNoHeight = errors.New("daemonrpc: chain height unavailable")
)

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// Cache keys. Every record in the daemonrpc keyspace is keyed by hash.
var (
	freshHeightKey = internal.FastHash("getblockcount")
	lastHeightKey  = internal.FastHash("lastheight")
)

// Client is a minimal chain daemon RPC client. It caches each method's
// freshest result for a short window and additionally remembers the last
// good chain height forever, as a fallback for daemon downtime.
type Client struct {
	url   string
	hc    *http.Client
	cache *store.JSON[int64]
	ttl   time.Duration
}

type Options struct {
	// URL of the daemon RPC endpoint, eg http://127.0.0.1:16124.
	URL string

	// Store backs the response cache.
	Store store.Interface

	// CacheTTL overrides how long a fetched height is reused, zero means
	// fluxosd.HeightCacheTTL.
	CacheTTL time.Duration

	// HTTPClient overrides the default HTTP client, mostly for tests.
	HTTPClient *http.Client
}

func New(opts Options) (*Client, error) {
	if opts.URL == "" {
		return nil, ErrNoURL
	}
	if opts.CacheTTL == 0 {
		opts.CacheTTL = fluxosd.HeightCacheTTL
	}

	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}

	result := &Client{
		url: opts.URL,
		hc:  hc,
		ttl: opts.CacheTTL,
	}

	if opts.Store != nil {
		result.cache = &store.JSON[int64]{
			Underlying: opts.Store,
			Prefix:     "daemonrpc:",
		}
	}

	return result, nil
}

func (c *Client) call(ctx context.Context, method string, result any) error {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "1.0",
		ID:      "fluxosd",
		Method:  method,
		Params:  []any{},
	})
	if err != nil {
		return fmt.Errorf("daemonrpc: can't encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("daemonrpc: can't build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("daemonrpc: %s call failed: %w", method, err)
	}
	defer resp.Body.Close()

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return fmt.Errorf("daemonrpc: can't decode %s response: %w", method, err)
	}

	if rpcResp.Error != nil {
		return fmt.Errorf("daemonrpc: %s failed: %d %s", method, rpcResp.Error.Code, rpcResp.Error.Message)
	}

	if err := json.Unmarshal(rpcResp.Result, result); err != nil {
		return fmt.Errorf("daemonrpc: can't decode %s result: %w", method, err)
	}

	return nil
}

// BlockCount returns the daemon's current chain height, preferring the
// cached value, then the daemon, then the last height ever observed.
func (c *Client) BlockCount(ctx context.Context) (int64, error) {
	if c.cache != nil {
		if height, err := c.cache.Get(ctx, freshHeightKey); err == nil {
			return height, nil
		}
	}

	var height int64
	if err := c.call(ctx, "getblockcount", &height); err != nil {
		if c.cache != nil {
			if stale, serr := c.cache.Get(ctx, lastHeightKey); serr == nil {
				slog.Warn("daemon unreachable, using last observed chain height", "height", stale, "err", err)
				return stale, nil
			}
		}

		return 0, fmt.Errorf("%w: %w", ErrNoHeight, err)
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, freshHeightKey, height, c.ttl); err != nil {
			slog.Error("can't cache chain height", "err", err)
		}
		if err := c.cache.Set(ctx, lastHeightKey, height, store.NoExpiry); err != nil {
			slog.Error("can't persist last chain height", "err", err)
		}
	}

	return height, nil
}
