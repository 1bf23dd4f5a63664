package fingerprint

import (
	"context"
	"net/http"
)

type ctxKey struct{}

// WithContext attaches a fingerprint to ctx.
func WithContext(ctx context.Context, fp string) context.Context {
	return context.WithValue(ctx, ctxKey{}, fp)
}

// FromContext returns the fingerprint set by Middleware, or "".
func FromContext(ctx context.Context) string {
	fp, _ := ctx.Value(ctxKey{}).(string)
	return fp
}

// Middleware computes FromRequest once per request so registration handlers
// and audit extractors see the same value.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fp := FromRequest(r); fp != "" {
			r = r.WithContext(WithContext(r.Context(), fp))
		}
		next.ServeHTTP(w, r)
	})
}
