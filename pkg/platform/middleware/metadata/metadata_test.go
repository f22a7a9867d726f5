package metadata

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"dunning/pkg/requestcontext"
)

func TestClientIPFromRequest(t *testing.T) {
	t.Run("first forwarded address wins", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
		assert.Equal(t, "203.0.113.7", ClientIPFromRequest(r))
	})

	t.Run("falls back to remote addr without port", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = "192.0.2.1:5555"
		assert.Equal(t, "192.0.2.1", ClientIPFromRequest(r))
	})
}

func TestClientName(t *testing.T) {
	assert.Equal(t, "", ClientName(""))
	assert.Equal(t, "curl", ClientName("curl/8.4.0"))
	assert.Equal(t, "Chrome 120",
		ClientName("Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"))
}

func TestClientMetadata(t *testing.T) {
	var ip, name string
	h := ClientMetadata(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip = requestcontext.ClientIP(r.Context())
		name = requestcontext.ClientName(r.Context())
	}))
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Real-IP", "198.51.100.2")
	r.Header.Set("User-Agent", "curl/8.4.0")

	h.ServeHTTP(httptest.NewRecorder(), r)

	assert.Equal(t, "198.51.100.2", ip)
	assert.Equal(t, "curl", name)
}
