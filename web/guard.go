package web

import (
	"log/slog"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
)

// isLoopbackHost reports whether a Host header value (with or without port) names this machine
func isLoopbackHost(hostport string) bool {
	host := hostport
	if h, _, err := net.SplitHostPort(hostport); err == nil {
		host = h
	}
	host = strings.ToLower(strings.Trim(host, "[]"))
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// allowedOrigin accepts requests without an Origin header and those whose
// Origin is the dashboard itself. Browsers always send Origin on cross-site
// writes and websocket handshakes.
func allowedOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	u, err := url.Parse(origin)
	if err != nil || u.Scheme != "http" {
		return false
	}
	return isLoopbackHost(u.Host) && strings.EqualFold(u.Host, r.Host)
}

// requiresJSON reports whether the method carries a request body that must be JSON
func requiresJSON(method string) bool {
	return method == http.MethodPost || method == http.MethodPut
}

// guard rejects requests that did not come from the loopback dashboard.
// Forcing a JSON content type on writes makes browsers preflight them,
// which a cross-site page cannot pass.
func guard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !isLoopbackHost(r.Host) {
			slog.Warn("Rejected request for foreign host", "host", r.Host, "path", r.URL.Path)
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		if !allowedOrigin(r) {
			slog.Warn("Rejected cross-origin request", "origin", r.Header.Get("Origin"), "path", r.URL.Path)
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		if requiresJSON(r.Method) {
			mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
			if err != nil || mediaType != "application/json" {
				http.Error(w, "Content-Type must be application/json", http.StatusUnsupportedMediaType)
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}
