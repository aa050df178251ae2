package httpapi

import (
	"context"

	"github.com/Flora-Ebah/kairos-backend/internal/domain"
)

type actorKey struct{}

func WithActor(ctx context.Context, actor domain.ActorID) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.ActorID, bool) {
	v, ok := ctx.Value(actorKey{}).(domain.ActorID)
	return v, ok && v != ""
}
