package testutil

import (
	"context"
	"testing"
)

type UserCreator interface {
	CreateUser(ctx context.Context, name, token string, isBot bool, balance int64) (string, error)
}

// MustCreateUser creates a human user whose token is "tok-"+name.
func MustCreateUser(t *testing.T, st UserCreator, name string, balance int64) string {
	t.Helper()
	id, err := st.CreateUser(context.Background(), name, "tok-"+name, false, balance)
	if err != nil {
		t.Fatalf("create user %s: %v", name, err)
	}
	return id
}
