package tenant

import (
	"context"

	"github.com/google/uuid"
	"github.com/storygraph/storygraph/internal/models"
)

type contextKey string

const (
	userKey contextKey = "user"
	sinkKey contextKey = "caller-sink"
)

// WithUser attaches u to ctx and reports its id to any sink installed
// further out by WithCallerSink.
func WithUser(ctx context.Context, u *models.User) context.Context {
	if sink, ok := ctx.Value(sinkKey).(*string); ok && sink != nil && u != nil {
		*sink = u.ID.String()
	}
	return context.WithValue(ctx, userKey, u)
}

// WithCallerSink lets an outer middleware learn who the request was
// authenticated as after the handler chain returns.
func WithCallerSink(ctx context.Context, sink *string) context.Context {
	return context.WithValue(ctx, sinkKey, sink)
}

func UserFromContext(ctx context.Context) *models.User {
	u, _ := ctx.Value(userKey).(*models.User)
	return u
}

// CallerID returns the authenticated user's id, or uuid.Nil when the
// request carries no session.
func CallerID(ctx context.Context) uuid.UUID {
	if u := UserFromContext(ctx); u != nil {
		return u.ID
	}
	return uuid.Nil
}
