package shared

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrMissingActor = errors.New("no authenticated staff in context")

// Actor identifies the staff member performing a write
type Actor struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	Role          string    `json:"role"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

type actorKey struct{}

// WithActor stores the acting staff member in ctx
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the acting staff member stored by WithActor
func ActorFromContext(ctx context.Context) (Actor, error) {
	actor, ok := ctx.Value(actorKey{}).(Actor)
	if !ok {
		return Actor{}, ErrMissingActor
	}
	return actor, nil
}
