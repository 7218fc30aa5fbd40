package bbolt

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestFactoryValid(t *testing.T) {
	f := Factory{}

	t.Run("bad config", func(t *testing.T) {
		if err := f.Valid(json.RawMessage(`}`)); err == nil {
			t.Error("wanted parsing failure but got a successful result")
		}
	})

	t.Run("missing path", func(t *testing.T) {
		data, err := json.Marshal(Config{})
		if err != nil {
			t.Fatal(err)
		}

		if err := f.Valid(json.RawMessage(data)); !errors.Is(err, ErrMissingPath) {
			t.Error(err)
		}
	})
}
