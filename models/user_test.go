package models

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUserContext(t *testing.T) {
	_, ok := UserFromContext(context.Background())
	require.False(t, ok)

	ctx := ContextWithUser(context.Background(), User{ID: "u1", Name: "Ada"})
	u, ok := UserFromContext(ctx)
	require.True(t, ok)
	require.Equal(t, "Ada", u.Name)

	_, ok = UserFromContext(ContextWithUser(context.Background(), User{}))
	require.False(t, ok)
}
