package http_test

import (
	"net/http/httptest"
	"testing"

	pkghttp "github.com/echoboardhq/echoboard-segments/pkg/http"
	"github.com/stretchr/testify/assert"
)

func TestExtractClientIP(t *testing.T) {
	tests := []struct {
		name          string
		remoteAddr    string
		xForwardedFor string
		xRealIP       string
		config        *pkghttp.IPConfig
		expected      string
	}{
		{
			name:          "direct connection ignores forwarding headers",
			remoteAddr:    "203.0.113.10:54321",
			xForwardedFor: "1.2.3.4, 5.6.7.8",
			xRealIP:       "192.168.1.1",
			config:        &pkghttp.IPConfig{TrustedProxies: []string{"10.0.0.0/8"}},
			expected:      "203.0.113.10",
		},
		{
			name:          "trusted proxy honors X-Forwarded-For",
			remoteAddr:    "10.0.0.5:54321",
			xForwardedFor: "203.0.113.42, 10.0.0.5",
			config:        &pkghttp.IPConfig{TrustedProxies: []string{"10.0.0.0/8"}},
			expected:      "203.0.113.42",
		},
		{
			name:       "trusted proxy falls back to X-Real-IP",
			remoteAddr: "10.0.0.5:54321",
			xRealIP:    "203.0.113.42",
			config:     &pkghttp.IPConfig{TrustedProxies: []string{"10.0.0.0/8"}},
			expected:   "203.0.113.42",
		},
		{
			name:          "ipv6 proxy forwards ipv6 client",
			remoteAddr:    "[::1]:54321",
			xForwardedFor: "2001:db8::1",
			config:        &pkghttp.IPConfig{TrustedProxies: []string{"::1/128"}},
			expected:      "2001:db8::1",
		},
		{
			name:          "nil config never trusts headers",
			remoteAddr:    "203.0.113.10:54321",
			xForwardedFor: "1.2.3.4",
			config:        nil,
			expected:      "203.0.113.10",
		},
		{
			name:          "empty proxy list never trusts headers",
			remoteAddr:    "203.0.113.10:54321",
			xForwardedFor: "1.2.3.4",
			config:        &pkghttp.IPConfig{TrustedProxies: []string{}},
			expected:      "203.0.113.10",
		},
		{
			name:          "invalid CIDR ranges are skipped",
			remoteAddr:    "203.0.113.10:54321",
			xForwardedFor: "1.2.3.4",
			config:        &pkghttp.IPConfig{TrustedProxies: []string{"not-a-cidr"}},
			expected:      "203.0.113.10",
		},
		{
			name:          "first entry of X-Forwarded-For wins",
			remoteAddr:    "10.0.0.5:54321",
			xForwardedFor: "203.0.113.42, 203.0.113.43, 10.0.0.5",
			config:        &pkghttp.IPConfig{TrustedProxies: []string{"10.0.0.0/8"}},
			expected:      "203.0.113.42",
		},
		{
			name:       "port stripped from RemoteAddr",
			remoteAddr: "203.0.113.10:54321",
			config:     &pkghttp.IPConfig{},
			expected:   "203.0.113.10",
		},
		{
			name:          "untrusted peer cannot claim localhost",
			remoteAddr:    "203.0.113.10:54321",
			xForwardedFor: "127.0.0.1, 203.0.113.10",
			config:        &pkghttp.IPConfig{TrustedProxies: []string{"10.0.0.0/8"}},
			expected:      "203.0.113.10",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xForwardedFor != "" {
				req.Header.Set("X-Forwarded-For", tt.xForwardedFor)
			}
			if tt.xRealIP != "" {
				req.Header.Set("X-Real-IP", tt.xRealIP)
			}

			assert.Equal(t, tt.expected, pkghttp.ExtractClientIP(req, tt.config))
		})
	}
}
