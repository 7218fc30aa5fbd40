package valkey

import (
	"encoding/json"
	"errors"
	"os"
	"testing"

	"github.com/fluxnode/fluxosd/lib/store/storetest"
)

func TestImpl(t *testing.T) {
	url := os.Getenv("VALKEY_URL")
	if url == "" {
		t.Skip("set VALKEY_URL (eg redis://localhost:6379/0) to run valkey store tests")
		return
	}

	data, err := json.Marshal(Config{URL: url})
	if err != nil {
		t.Fatal(err)
	}

	storetest.Common(t, Factory{}, json.RawMessage(data))
}

func TestConfigValid(t *testing.T) {
	if err := (Config{}).Valid(); !errors.Is(err, ErrNoURL) {
		t.Errorf("wanted ErrNoURL, got: %v", err)
	}

	if err := (Config{URL: "://nope"}).Valid(); !errors.Is(err, ErrBadURL) {
		t.Errorf("wanted ErrBadURL, got: %v", err)
	}

	if err := (Config{URL: "redis://localhost:6379/0"}).Valid(); err != nil {
		t.Errorf("wanted valid config, got: %v", err)
	}
}
