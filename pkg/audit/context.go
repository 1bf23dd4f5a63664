package audit

import "context"

type actorKey struct{}

// WithActorContext stores the acting principal for ActorFromContext.
func WithActorContext(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext is the default actor extractor.
func ActorFromContext(ctx context.Context) (string, bool) {
	actor, ok := ctx.Value(actorKey{}).(string)
	return actor, ok && actor != ""
}
