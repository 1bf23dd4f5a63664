package environment

import (
	"context"
	"log/slog"
	"net/http"
)

// Environment names a deployment. Flags may restrict themselves to a list of
// environments, compared against the value carried in the request context.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

var aliases = map[string]Environment{
	"dev":   Development,
	"stage": Staging,
	"prod":  Production,
}

// Normalize expands the short aliases dev, stage and prod. Other values pass
// through unchanged.
func Normalize(env string) string {
	if full, ok := aliases[env]; ok {
		return string(full)
	}
	return env
}

type ctxKey struct{}

func WithContext(ctx context.Context, env string) context.Context {
	return context.WithValue(ctx, ctxKey{}, env)
}

// FromContext returns the environment stored in ctx, or "".
func FromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	env, _ := ctx.Value(ctxKey{}).(string)
	return env
}

func IsProduction(ctx context.Context) bool {
	return Environment(Normalize(FromContext(ctx))) == Production
}

// Middleware stamps every request with env, the environment this instance
// serves.
func Middleware(env string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(WithContext(r.Context(), env)))
		})
	}
}

// LoggerExtractor adds an "env" attribute to records logged with a request
// context. It has the shape of logger.ContextExtractor.
func LoggerExtractor() func(context.Context) (slog.Attr, bool) {
	return func(ctx context.Context) (slog.Attr, bool) {
		env := FromContext(ctx)
		return slog.String("env", env), env != ""
	}
}
