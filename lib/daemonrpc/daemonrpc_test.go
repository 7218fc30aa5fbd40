package daemonrpc

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/fluxnode/fluxosd/lib/store/memory"
)

func fakeDaemon(t *testing.T, height *atomic.Int64, up *atomic.Bool) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !up.Load() {
			http.Error(w, "daemon is down", http.StatusBadGateway)
			return
		}

		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("can't decode RPC request: %v", err)
		}
		if req.Method != "getblockcount" {
			t.Errorf("unexpected method: %q", req.Method)
		}

		json.NewEncoder(w).Encode(map[string]any{
			"result": height.Load(),
			"error":  nil,
			"id":     req.ID,
		})
	}))
}

func TestBlockCount(t *testing.T) {
	var height atomic.Int64
	var up atomic.Bool
	height.Store(1_234_567)
	up.Store(true)

	ts := fakeDaemon(t, &height, &up)
	defer ts.Close()

	c, err := New(Options{
		URL:   ts.URL,
		Store: memory.New(t.Context()),
	})
	if err != nil {
		t.Fatal(err)
	}

	got, err := c.BlockCount(t.Context())
	if err != nil {
		t.Fatal(err)
	}
	if got != 1_234_567 {
		t.Errorf("wanted height 1234567, got: %d", got)
	}

	// second read is served from cache even though the daemon moved on
	height.Store(1_234_568)
	got, err = c.BlockCount(t.Context())
	if err != nil {
		t.Fatal(err)
	}
	if got != 1_234_567 {
		t.Errorf("wanted cached height 1234567, got: %d", got)
	}
}

func TestBlockCountDaemonDown(t *testing.T) {
	var height atomic.Int64
	var up atomic.Bool
	height.Store(99)
	up.Store(true)

	ts := fakeDaemon(t, &height, &up)
	defer ts.Close()

	c, err := New(Options{
		URL:      ts.URL,
		Store:    memory.New(t.Context()),
		CacheTTL: 1, // effectively no fresh cache
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := c.BlockCount(t.Context()); err != nil {
		t.Fatal(err)
	}

	up.Store(false)

	got, err := c.BlockCount(t.Context())
	if err != nil {
		t.Fatalf("wanted the last observed height while the daemon is down, got: %v", err)
	}
	if got != 99 {
		t.Errorf("wanted height 99, got: %d", got)
	}
}

func TestBlockCountNeverObserved(t *testing.T) {
	var height atomic.Int64
	var up atomic.Bool

	ts := fakeDaemon(t, &height, &up)
	defer ts.Close()

	c, err := New(Options{
		URL:   ts.URL,
		Store: memory.New(t.Context()),
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := c.BlockCount(t.Context()); !errors.Is(err, ErrNoHeight) {
		t.Errorf("wanted ErrNoHeight, got: %v", err)
	}
}

func TestCacheKeysDistinct(t *testing.T) {
	if freshHeightKey == lastHeightKey {
		t.Error("fresh and fallback cache keys collide")
	}
}

func TestNewValidation(t *testing.T) {
	if _, err := New(Options{}); !errors.Is(err, ErrNoURL) {
		t.Errorf("wanted ErrNoURL, got: %v", err)
	}
}
