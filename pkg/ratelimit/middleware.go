package ratelimit

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dmitrymomot/flaggate/pkg/logger"
)

// MiddlewareOption customises Middleware.
type MiddlewareOption func(*limitHandler)

// WithOnLimitReached replaces the default plain-text 429 response.
func WithOnLimitReached(fn func(w http.ResponseWriter, r *http.Request, res *Result)) MiddlewareOption {
	return func(h *limitHandler) { h.reject = fn }
}

// WithSkipFunc exempts matching requests from counting.
func WithSkipFunc(fn func(r *http.Request) bool) MiddlewareOption {
	return func(h *limitHandler) { h.skip = fn }
}

func WithMiddlewareLogger(log *slog.Logger) MiddlewareOption {
	return func(h *limitHandler) {
		if log != nil {
			h.log = log
		}
	}
}

type limitHandler struct {
	next    http.Handler
	limiter Limiter
	key     KeyFunc
	reject  func(http.ResponseWriter, *http.Request, *Result)
	skip    func(*http.Request) bool
	log     *slog.Logger
}

// Middleware counts each request against limiter under key(r). Requests
// without a key are not limited. A failing limiter lets traffic through.
func Middleware(limiter Limiter, key KeyFunc, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	if key == nil {
		panic("ratelimit: Middleware needs a KeyFunc")
	}
	return func(next http.Handler) http.Handler {
		h := &limitHandler{next: next, limiter: limiter, key: key, reject: TooManyRequests, log: logger.Nop()}
		for _, opt := range opts {
			opt(h)
		}
		return h
	}
}

func (h *limitHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.skip != nil && h.skip(r) {
		h.next.ServeHTTP(w, r)
		return
	}
	k := h.key(r)
	if k == "" {
		h.next.ServeHTTP(w, r)
		return
	}

	res, err := h.limiter.Allow(r.Context(), k)
	if err != nil {
		h.log.WarnContext(r.Context(), "rate limiter failed open",
			logger.Component("ratelimit"), logger.Error(err))
		h.next.ServeHTTP(w, r)
		return
	}

	hdr := w.Header()
	hdr.Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
	hdr.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
	hdr.Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))
	if !res.Allowed {
		h.reject(w, r, res)
		return
	}
	h.next.ServeHTTP(w, r)
}

// TooManyRequests writes a bare 429 with Retry-After rounded to at least one
// second.
func TooManyRequests(w http.ResponseWriter, _ *http.Request, res *Result) {
	w.Header().Set("Retry-After", strconv.Itoa(max(int(res.RetryAfter().Seconds()), 1)))
	http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
}
