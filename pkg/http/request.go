package http

import (
	"net"
	"net/http"
	"strings"
)

// IPConfig holds configuration for client IP extraction
type IPConfig struct {
	TrustedProxies []string // CIDR ranges of trusted proxies
}

// ExtractClientIP returns the client IP for a request. Forwarding headers
// (X-Forwarded-For, then X-Real-IP) are honored only when the direct peer is
// a trusted proxy; otherwise they are attacker-controlled and ignored.
func ExtractClientIP(r *http.Request, config *IPConfig) string {
	remoteIP := remoteAddrIP(r)

	if config != nil && fromTrustedProxy(remoteIP, config.TrustedProxies) {
		// X-Forwarded-For is a comma list, client first; take the first
		// entry that parses as an address
		for _, ip := range strings.Split(r.Header.Get("X-Forwarded-For"), ",") {
			if ip = strings.TrimSpace(ip); net.ParseIP(ip) != nil {
				return ip
			}
		}

		if xri := r.Header.Get("X-Real-IP"); net.ParseIP(xri) != nil {
			return xri
		}
	}

	return remoteIP
}

// remoteAddrIP strips the port from RemoteAddr when one is present
func remoteAddrIP(r *http.Request) string {
	if r.RemoteAddr == "" {
		return "unknown"
	}
	if ip, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return ip
	}
	return r.RemoteAddr
}

// fromTrustedProxy reports whether ip falls inside any of the given CIDR
// ranges. Invalid ranges are skipped.
func fromTrustedProxy(ip string, trustedProxies []string) bool {
	peer := net.ParseIP(ip)
	if peer == nil {
		return false
	}

	for _, cidr := range trustedProxies {
		_, ipNet, err := net.ParseCIDR(cidr)
		if err != nil {
			continue
		}
		if ipNet.Contains(peer) {
			return true
		}
	}

	return false
}
