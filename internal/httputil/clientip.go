package httputil

import (
	"net"
	"net/http"
)

// ClientIP returns the host part of r.RemoteAddr. When proxy headers are
// trusted, chi's RealIP middleware has already rewritten RemoteAddr.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
