package internal

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func captureXRealIP(t *testing.T) (http.Handler, *string) {
	t.Helper()

	var got string
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("X-Real-Ip")
	}), &got
}

func TestRemoteXRealIP(t *testing.T) {
	t.Run("tcp", func(t *testing.T) {
		inner, got := captureXRealIP(t)
		h := RemoteXRealIP(true, "tcp", inner)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.99:4444"
		req.Header.Set("X-Real-Ip", "1.2.3.4")
		h.ServeHTTP(httptest.NewRecorder(), req)

		if *got != "10.0.0.99" {
			t.Errorf("wanted 10.0.0.99, got: %q", *got)
		}
	})

	t.Run("unix", func(t *testing.T) {
		inner, got := captureXRealIP(t)
		h := RemoteXRealIP(true, "unix", inner)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		h.ServeHTTP(httptest.NewRecorder(), req)

		if *got != "127.0.0.1" {
			t.Errorf("wanted 127.0.0.1, got: %q", *got)
		}
	})

	t.Run("disabled", func(t *testing.T) {
		inner, got := captureXRealIP(t)
		h := RemoteXRealIP(false, "tcp", inner)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Real-Ip", "1.2.3.4")
		h.ServeHTTP(httptest.NewRecorder(), req)

		if *got != "1.2.3.4" {
			t.Errorf("wanted 1.2.3.4, got: %q", *got)
		}
	})
}

func TestXForwardedForToXRealIP(t *testing.T) {
	inner, got := captureXRealIP(t)
	h := XForwardedForToXRealIP(inner)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.5:9999"
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.5")
	h.ServeHTTP(httptest.NewRecorder(), req)

	if *got != "203.0.113.7" {
		t.Errorf("wanted 203.0.113.7, got: %q", *got)
	}
}
