package ratelimit_test

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/flaggate/pkg/ratelimit"
)

func TestComposite(t *testing.T) {
	t.Parallel()

	remote := func(r *http.Request) string { return r.RemoteAddr }
	hashed := func(s string) string {
		sum := sha256.Sum256([]byte(s))
		return hex.EncodeToString(sum[:16])
	}

	tests := []struct {
		name     string
		keyFuncs []ratelimit.KeyFunc
		expected string
	}{
		{"no key funcs", nil, ""},
		{"single", []ratelimit.KeyFunc{remote}, "192.168.1.1:8080"},
		{
			"namespaced",
			[]ratelimit.KeyFunc{ratelimit.Static("eval"), remote},
			"eval:192.168.1.1:8080",
		},
		{
			"empty parts skipped",
			[]ratelimit.KeyFunc{ratelimit.Header("X-Client"), ratelimit.Static("eval"), remote},
			"eval:192.168.1.1:8080",
		},
		{"all empty", []ratelimit.KeyFunc{ratelimit.Header("X-Client")}, ""},
		{"exactly 64 chars kept", []ratelimit.KeyFunc{ratelimit.Static(strings.Repeat("x", 64))}, strings.Repeat("x", 64)},
		{
			"long key hashed",
			[]ratelimit.KeyFunc{ratelimit.Static(strings.Repeat("a", 40)), ratelimit.Static(strings.Repeat("b", 40))},
			hashed(strings.Repeat("a", 40) + ":" + strings.Repeat("b", 40)),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = "192.168.1.1:8080"
			assert.Equal(t, tt.expected, ratelimit.Composite(tt.keyFuncs...)(req))
		})
	}
}

func TestHeader(t *testing.T) {
	t.Parallel()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Actor", "ops@example.com")
	assert.Equal(t, "ops@example.com", ratelimit.Header("X-Actor")(req))
}
