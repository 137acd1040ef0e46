package auth

import (
	"context"

	"github.com/lifeline-hq/lifeline/engine/user"
)

type contextKey string

const contextKeyUser contextKey = "auth_user"

// WithUser stores the authenticated principal in the context.
func WithUser(ctx context.Context, u *user.User) context.Context {
	return context.WithValue(ctx, contextKeyUser, u)
}

// UserFromContext retrieves the authenticated principal from the context.
func UserFromContext(ctx context.Context) (*user.User, bool) {
	u, ok := ctx.Value(contextKeyUser).(*user.User)
	return u, ok
}
