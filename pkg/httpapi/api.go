package httpapi

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/flaggate/pkg/abuse"
	"github.com/dmitrymomot/flaggate/pkg/clientip"
	"github.com/dmitrymomot/flaggate/pkg/environment"
	"github.com/dmitrymomot/flaggate/pkg/feature"
	"github.com/dmitrymomot/flaggate/pkg/fingerprint"
	"github.com/dmitrymomot/flaggate/pkg/httpserver"
	"github.com/dmitrymomot/flaggate/pkg/logger"
	"github.com/dmitrymomot/flaggate/pkg/ratelimit"
	"github.com/dmitrymomot/flaggate/pkg/requestid"
	"github.com/dmitrymomot/flaggate/pkg/sanitizer"
)

// ActorHeader names the operator performing a management call. Callers are
// authenticated upstream.
const ActorHeader = "X-Actor"

const defaultActor = "api"

// API serves the HTTP surface. Build it with New and mount Handler.
type API struct {
	engine     *feature.Engine
	manager    *feature.Manager
	emergency  *feature.Emergency
	protection *abuse.Protection
	resolver   *clientip.Resolver
	limiter    ratelimit.Limiter
	env        string
	checks     []httpserver.Check
	log        *slog.Logger
}

// Option configures an API.
type Option func(*API)

// WithProtection mounts the registration routes.
func WithProtection(p *abuse.Protection) Option {
	return func(a *API) { a.protection = p }
}

// WithResolver sets the client IP resolver. The default trusts loopback and
// private proxies.
func WithResolver(r *clientip.Resolver) Option {
	return func(a *API) {
		if r != nil {
			a.resolver = r
		}
	}
}

// WithRegistrationLimiter caps registration calls per client IP.
func WithRegistrationLimiter(l ratelimit.Limiter) Option {
	return func(a *API) { a.limiter = l }
}

// WithEnvironment stamps every request context with env.
func WithEnvironment(env string) Option {
	return func(a *API) { a.env = env }
}

// WithHealthChecks adds readiness checks to /healthz.
func WithHealthChecks(checks ...httpserver.Check) Option {
	return func(a *API) { a.checks = append(a.checks, checks...) }
}

func WithLogger(l *slog.Logger) Option {
	return func(a *API) {
		if l != nil {
			a.log = l
		}
	}
}

// New builds the API over the engine and the management plane.
func New(engine *feature.Engine, manager *feature.Manager, emergency *feature.Emergency, opts ...Option) *API {
	a := &API{
		engine:    engine,
		manager:   manager,
		emergency: emergency,
		log:       logger.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.resolver == nil {
		// The default prefixes always parse.
		a.resolver, _ = clientip.NewResolver()
	}
	return a
}

// Handler returns the router.
func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer,
		requestid.Middleware,
		a.resolver.Middleware,
		fingerprint.Middleware,
	)
	if a.env != "" {
		r.Use(environment.Middleware(a.env))
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) { a.fail(w, r, ErrNotFound) })
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) { a.fail(w, r, ErrMethodNotAllowed) })

	r.Get("/healthz", httpserver.HealthHandler(a.log, 2*time.Second, a.checks...))

	r.Route("/v1", func(r chi.Router) {
		r.Post("/evaluate", a.evaluate)
		r.Post("/evaluate/batch", a.evaluateBatch)

		r.Route("/flags", func(r chi.Router) {
			r.Get("/", a.listFlags)
			r.Post("/", a.createFlag)
			r.Get("/{key}", a.getFlag)
			r.Put("/{key}", a.updateFlag)
			r.Delete("/{key}", a.deleteFlag)
			r.Post("/{key}/emergency-disable", a.emergencyDisable)
		})
		r.Post("/emergency/disable-all", a.emergencyDisableAll)

		if a.protection != nil {
			r.Route("/registration", func(r chi.Router) {
				if a.limiter != nil {
					r.Use(ratelimit.Middleware(a.limiter, ipKey("registration"),
						ratelimit.WithOnLimitReached(a.limitReached),
						ratelimit.WithMiddlewareLogger(a.log),
					))
				}
				r.Post("/check", a.registrationCheck)
				r.Post("/failure", a.registrationFailure)
				r.Post("/success", a.registrationSuccess)
				r.Post("/confirm", a.registrationConfirm)
				r.Post("/unblock", a.registrationUnblock)
			})
		}
	})
	return r
}

// ipKey namespaces the resolved client IP with scope. Requests without an
// IP are not limited here; the protection itself rejects them.
func ipKey(scope string) ratelimit.KeyFunc {
	ip := func(r *http.Request) string { return clientip.FromContext(r.Context()) }
	key := ratelimit.Composite(ratelimit.Static(scope), ip)
	return func(r *http.Request) string {
		if ip(r) == "" {
			return ""
		}
		return key(r)
	}
}

func (a *API) limitReached(w http.ResponseWriter, r *http.Request, res *ratelimit.Result) {
	retryAfter := max(int(res.RetryAfter().Seconds()), 1)
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	a.fail(w, r, ErrTooManyRequests)
}

var cleanActor = sanitizer.Compose(
	sanitizer.RemoveControlChars,
	sanitizer.Trim,
	sanitizer.Truncate(128),
)

func actor(r *http.Request) string {
	if v := cleanActor(r.Header.Get(ActorHeader)); v != "" {
		return v
	}
	return defaultActor
}
