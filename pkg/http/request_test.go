package http_test

import (
	"net/http/httptest"
	"testing"

	pkghttp "github.com/mhartsell/gatehouse/pkg/http"
	"github.com/stretchr/testify/assert"
)

func TestExtractClientIP_UntrustedConnectionIgnoresHeaders(t *testing.T) {
	r := httptest.NewRequest("POST", "/auth/login", nil)
	r.RemoteAddr = "198.51.100.7:42318"
	r.Header.Set("X-Forwarded-For", "203.0.113.5")
	r.Header.Set("CF-Connecting-IP", "203.0.113.9")

	ip := pkghttp.ExtractClientIP(r, &pkghttp.IPConfig{})
	assert.Equal(t, "198.51.100.7", ip)
}

func TestExtractClientIP_TrustedProxyHeaderPriority(t *testing.T) {
	config := &pkghttp.IPConfig{TrustedProxies: []string{"10.0.0.0/8"}}

	tests := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{
			name: "cdn connecting ip wins over forwarded-for",
			headers: map[string]string{
				"CF-Connecting-IP": "203.0.113.9",
				"X-Forwarded-For":  "203.0.113.5",
			},
			want: "203.0.113.9",
		},
		{
			name: "forwarded-for takes first valid entry",
			headers: map[string]string{
				"X-Forwarded-For": "not-an-ip, 203.0.113.5, 10.0.0.1",
			},
			want: "203.0.113.5",
		},
		{
			name: "real-ip as last resort header",
			headers: map[string]string{
				"X-Real-IP": "2001:db8::17",
			},
			want: "2001:db8::17",
		},
		{
			name: "garbage headers fall back to connection address",
			headers: map[string]string{
				"CF-Connecting-IP": "<script>",
				"X-Forwarded-For":  "unknown",
			},
			want: "10.0.0.2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("POST", "/auth/login", nil)
			r.RemoteAddr = "10.0.0.2:55000"
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, pkghttp.ExtractClientIP(r, config))
		})
	}
}

func TestExtractClientIP_UnparseableRemoteAddrUsesSentinel(t *testing.T) {
	r := httptest.NewRequest("POST", "/auth/login", nil)
	r.RemoteAddr = "bogus"

	ip := pkghttp.ExtractClientIP(r, nil)
	assert.Equal(t, pkghttp.FallbackIP, ip)
}

func TestExtractClientIP_RemoteAddrWithoutPort(t *testing.T) {
	r := httptest.NewRequest("POST", "/auth/login", nil)
	r.RemoteAddr = "198.51.100.7"

	ip := pkghttp.ExtractClientIP(r, nil)
	assert.Equal(t, "198.51.100.7", ip)
}
