package fingerprint_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/flaggate/pkg/fingerprint"
)

func newRequest(headers map[string]string, remoteAddr string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/v1/registration/check", nil)
	req.RemoteAddr = remoteAddr
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return req
}

var chrome = map[string]string{
	"User-Agent":         "Mozilla/5.0 (Macintosh; Intel Mac OS X 14_4) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36",
	"Accept":             "text/html,application/xhtml+xml",
	"Accept-Language":    "en-US,en;q=0.9",
	"Accept-Encoding":    "gzip, deflate, br",
	"Sec-Ch-Ua":          `"Chromium";v="124"`,
	"Sec-Ch-Ua-Platform": `"macOS"`,
	"Sec-Fetch-Mode":     "navigate",
}

func TestGenerate(t *testing.T) {
	t.Parallel()

	t.Run("stable and hex", func(t *testing.T) {
		t.Parallel()
		req := newRequest(chrome, "198.51.100.1:5000")
		fp := fingerprint.Generate(req)
		assert.Equal(t, fp, fingerprint.Generate(req))
		assert.Regexp(t, "^[a-f0-9]{32}$", fp)
	})

	t.Run("independent of client address", func(t *testing.T) {
		t.Parallel()
		a := fingerprint.Generate(newRequest(chrome, "198.51.100.1:5000"))
		b := fingerprint.Generate(newRequest(chrome, "203.0.113.77:6000"))
		assert.Equal(t, a, b)
	})

	t.Run("user agent changes it", func(t *testing.T) {
		t.Parallel()
		other := map[string]string{}
		for k, v := range chrome {
			other[k] = v
		}
		other["User-Agent"] = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) Firefox/125.0"
		assert.NotEqual(t,
			fingerprint.Generate(newRequest(chrome, "198.51.100.1:5000")),
			fingerprint.Generate(newRequest(other, "198.51.100.1:5000")),
		)
	})

	t.Run("extra stable header changes it", func(t *testing.T) {
		t.Parallel()
		with := map[string]string{"Upgrade-Insecure-Requests": "1"}
		for k, v := range chrome {
			with[k] = v
		}
		assert.NotEqual(t,
			fingerprint.Generate(newRequest(chrome, "198.51.100.1:5000")),
			fingerprint.Generate(newRequest(with, "198.51.100.1:5000")),
		)
	})

	t.Run("unrelated headers are ignored", func(t *testing.T) {
		t.Parallel()
		with := map[string]string{"X-Request-Id": "abc", "Cookie": "a=b"}
		for k, v := range chrome {
			with[k] = v
		}
		assert.Equal(t,
			fingerprint.Generate(newRequest(chrome, "198.51.100.1:5000")),
			fingerprint.Generate(newRequest(with, "198.51.100.1:5000")),
		)
	})

	t.Run("bare request", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header = http.Header{}
		assert.Empty(t, fingerprint.Generate(req))
	})
}

func TestFromRequest(t *testing.T) {
	t.Parallel()

	req := newRequest(chrome, "198.51.100.1:5000")
	derived := fingerprint.Generate(req)

	req.Header.Set(fingerprint.Header, "c1f6a2e0-7b7d-4c2e-9f1e-0d7b1f0a9a11")
	assert.Equal(t, "c1f6a2e0-7b7d-4c2e-9f1e-0d7b1f0a9a11", fingerprint.FromRequest(req))

	req.Header.Set(fingerprint.Header, "short")
	assert.Equal(t, derived, fingerprint.FromRequest(req))

	req.Header.Set(fingerprint.Header, "<script>alert(1)</script>0000000")
	assert.Equal(t, derived, fingerprint.FromRequest(req))
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	var got string
	h := fingerprint.Middleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = fingerprint.FromContext(r.Context())
	}))
	req := newRequest(chrome, "198.51.100.1:5000")
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, fingerprint.Generate(req), got)
	assert.Empty(t, fingerprint.FromContext(t.Context()))
}

func BenchmarkGenerate(b *testing.B) {
	req := newRequest(chrome, "198.51.100.1:5000")
	for b.Loop() {
		_ = fingerprint.Generate(req)
	}
}
