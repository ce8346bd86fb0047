package auth

import (
	"context"
	"net/http"
)

const ActorHeader = "X-User-ID"

type actorKey struct{}

// WithActorID stores the acting user on the context.
func WithActorID(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, actorKey{}, actorID)
}

// GetActorID returns the user recorded on movements, as set by
// ActorMiddleware. Empty means a system actor.
func GetActorID(ctx context.Context) string {
	val, _ := ctx.Value(actorKey{}).(string)
	return val
}

// ActorMiddleware copies the X-User-ID header onto the request context.
func ActorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if actor := r.Header.Get(ActorHeader); actor != "" {
			r = r.WithContext(WithActorID(r.Context(), actor))
		}
		next.ServeHTTP(w, r)
	})
}
