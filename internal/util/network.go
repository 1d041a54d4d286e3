package util

import (
	"net"
	"net/http"
)

// proxyHeaders mark a request that was forwarded on behalf of another client.
var proxyHeaders = []string{"X-Forwarded-For", "X-Real-IP", "Forwarded"}

// IsLocalhostDirect reports whether r arrived on a loopback address with no
// proxy in between. A forwarded request is never treated as local.
func IsLocalhostDirect(r *http.Request) bool {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return false
	}
	if ip := net.ParseIP(host); ip == nil || !ip.IsLoopback() {
		return false
	}
	for _, h := range proxyHeaders {
		if r.Header.Get(h) != "" {
			return false
		}
	}
	return true
}
