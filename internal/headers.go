package internal

import (
	"log/slog"
	"net"
	"net/http"

	"github.com/sebest/xff"
)

// RemoteXRealIP overwrites X-Real-Ip with the socket peer address. Enable it
// when the agent faces clients directly instead of sitting behind a reverse
// proxy. Unix sockets have no peer IP, so those connections count as local.
func RemoteXRealIP(useRemoteAddress bool, bindNetwork string, next http.Handler) http.Handler {
	if !useRemoteAddress {
		return next
	}

	if bindNetwork == "unix" {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Header.Set("X-Real-Ip", "127.0.0.1")
			next.ServeHTTP(w, r)
		})
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		r.Header.Set("X-Real-Ip", host)
		next.ServeHTTP(w, r)
	})
}

// XForwardedForToXRealIP backfills X-Real-Ip from X-Forwarded-For, letting
// xff pick the first non-proxy hop.
func XForwardedForToXRealIP(next http.Handler) http.Handler {
	xffmw, err := xff.Default()
	if err != nil {
		slog.Error("can't set up X-Forwarded-For handling", "err", err)
		return next
	}

	return xffmw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Real-Ip") == "" && r.Header.Get("X-Forwarded-For") != "" {
			host, _, err := net.SplitHostPort(r.RemoteAddr)
			if err == nil {
				r.Header.Set("X-Real-Ip", host)
			}
		}
		next.ServeHTTP(w, r)
	}))
}
