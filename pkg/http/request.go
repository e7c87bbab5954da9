package http

import (
	"net"
	"net/http"
	"strings"
)

// FallbackIP is returned when no candidate parses as a valid IP literal.
// Using a fixed loopback sentinel keeps every throttle bucket keyed by a
// validated address, never by raw header content.
const FallbackIP = "127.0.0.1"

// IPConfig holds configuration for client IP extraction
type IPConfig struct {
	TrustedProxies []string // CIDR ranges of trusted proxies
}

// proxyHeaders in priority order: CDN connecting-IP headers first, then
// the generic forwarding headers.
var proxyHeaders = []string{
	"CF-Connecting-IP",
	"True-Client-IP",
	"X-Forwarded-For",
	"X-Real-IP",
}

// ExtractClientIP resolves the request to a best-effort client IP.
//
// Forwarded headers are only consulted when the connection itself comes
// from a trusted proxy range; otherwise they are attacker-controlled and
// the raw connection address wins. Comma-separated headers contribute
// their first valid entry. If nothing validates, FallbackIP is returned.
func ExtractClientIP(r *http.Request, config *IPConfig) string {
	remoteIP := getRemoteAddr(r)

	if config != nil && isTrustedProxy(remoteIP, config.TrustedProxies) {
		for _, header := range proxyHeaders {
			value := r.Header.Get(header)
			if value == "" {
				continue
			}
			for _, candidate := range strings.Split(value, ",") {
				candidate = strings.TrimSpace(candidate)
				if isValidIP(candidate) {
					return candidate
				}
			}
		}
	}

	if isValidIP(remoteIP) {
		return remoteIP
	}
	return FallbackIP
}

// getRemoteAddr extracts the IP from RemoteAddr, removing the port if present
func getRemoteAddr(r *http.Request) string {
	if r.RemoteAddr == "" {
		return ""
	}
	if ip, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return ip
	}
	return r.RemoteAddr
}

// isTrustedProxy checks if an IP is within any of the trusted proxy CIDR ranges
func isTrustedProxy(ip string, trustedProxies []string) bool {
	if len(trustedProxies) == 0 {
		return false
	}

	clientIP := net.ParseIP(ip)
	if clientIP == nil {
		return false
	}

	for _, cidr := range trustedProxies {
		_, ipNet, err := net.ParseCIDR(cidr)
		if err != nil {
			continue // Skip invalid CIDR ranges
		}
		if ipNet.Contains(clientIP) {
			return true
		}
	}

	return false
}

// isValidIP checks if a string is a valid IPv4 or IPv6 address
func isValidIP(ip string) bool {
	return net.ParseIP(ip) != nil
}
