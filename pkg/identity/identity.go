package identity

import (
	"context"
	"strings"
)

type Role string

const (
	RoleArtist Role = "artist"
	RoleClient Role = "client"
)

func (r Role) Valid() bool {
	return r == RoleArtist || r == RoleClient
}

// Caller is the authenticated principal of a request.
type Caller struct {
	ID   string `json:"user_id"`
	Role Role   `json:"role"`
}

func (c Caller) Is(role Role) bool {
	return c.Role == role
}

// User is the public view of an account as served by the auth directory.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
	Name  string `json:"name"`
}

type ctxKey struct{}

func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

func CallerFromContext(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(ctxKey{}).(Caller)
	return c, ok
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}
