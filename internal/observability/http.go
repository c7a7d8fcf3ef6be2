package observability

import (
	"net"
	"net/http"
	"strings"
)

// DeviceIDFromRequest reads X-Device-Id, falling back to the device query
// parameter that browser websocket clients use instead of headers.
func DeviceIDFromRequest(r *http.Request) string {
	if id := r.Header.Get("X-Device-Id"); id != "" {
		return id
	}
	return r.URL.Query().Get("device")
}

// IPFromRequest prefers the first X-Forwarded-For hop over RemoteAddr.
func IPFromRequest(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}
