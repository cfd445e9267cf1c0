package models

import (
	"context"
)

// User is the identity carried by a verified bearer token.
type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type userKey struct{}

func ContextWithUser(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

// UserFromContext returns the user stored by ContextWithUser.
func UserFromContext(ctx context.Context) (User, bool) {
	u, ok := ctx.Value(userKey{}).(User)
	return u, ok && u.ID != ""
}
