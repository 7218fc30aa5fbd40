package oracle

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient(ClientOptions{}); !errors.Is(err, ErrNoURL) {
		t.Errorf("wanted ErrNoURL, got: %v", err)
	}
}

func TestClientDecrypt(t *testing.T) {
	var gotReq Request

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/decrypt" {
			t.Errorf("unexpected call: %s %s", r.Method, r.URL.Path)
		}

		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("can't decode request: %v", err)
		}

		json.NewEncoder(w).Encode(Response{
			Status: StatusSuccess,
			Data:   `{"status":"success","message":"plaintext"}`,
		})
	}))
	defer ts.Close()

	c, err := NewClient(ClientOptions{URL: ts.URL})
	if err != nil {
		t.Fatal(err)
	}

	resp, err := c.Decrypt(t.Context(), Request{
		PurposeID:   "arcane-configsync",
		SystemID:    "node-1",
		Message:     "blob",
		BlockHeight: 1337,
	})
	if err != nil {
		t.Fatal(err)
	}

	if gotReq.Message != "blob" || gotReq.BlockHeight != 1337 {
		t.Errorf("request not forwarded faithfully: %+v", gotReq)
	}

	if resp.Status != StatusSuccess {
		t.Errorf("wanted success status, got: %q", resp.Status)
	}

	payload, err := ParsePayload(resp.Data)
	if err != nil {
		t.Fatal(err)
	}

	if payload.Message != "plaintext" {
		t.Errorf("wanted plaintext, got: %q", payload.Message)
	}
}

func TestClientDecryptBadStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer ts.Close()

	c, err := NewClient(ClientOptions{URL: ts.URL})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := c.Decrypt(t.Context(), Request{}); err == nil {
		t.Error("wanted HTTP 500 to surface as an error, it did not")
	}
}
