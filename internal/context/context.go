package context

import (
	"context"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// UserIDKey is the context key for user ID
	UserIDKey ContextKey = "user_id"
	// UsernameKey is the context key for the username
	UsernameKey ContextKey = "username"
	// EmailKey is the context key for user email
	EmailKey ContextKey = "email"
	// RoleKey is the context key for the user role
	RoleKey ContextKey = "role"
	// TokenKey is the context key for the raw session token
	TokenKey ContextKey = "session_token"
)

// Identity is the authenticated principal attached to a request
type Identity struct {
	UserID   string
	Username string
	Email    string
	Role     string
	Token    string
}

// WithIdentity returns a copy of ctx carrying the identity values
func WithIdentity(ctx context.Context, id Identity) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, id.UserID)
	ctx = context.WithValue(ctx, UsernameKey, id.Username)
	ctx = context.WithValue(ctx, EmailKey, id.Email)
	ctx = context.WithValue(ctx, RoleKey, id.Role)
	ctx = context.WithValue(ctx, TokenKey, id.Token)
	return ctx
}

// ExtractUserID extracts the user ID from the request context
func ExtractUserID(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDKey).(string)
	return userID, ok && userID != ""
}

// ExtractEmail extracts the email from the request context
func ExtractEmail(ctx context.Context) (string, bool) {
	email, ok := ctx.Value(EmailKey).(string)
	return email, ok
}

// ExtractRole extracts the user role from the request context
func ExtractRole(ctx context.Context) (string, bool) {
	role, ok := ctx.Value(RoleKey).(string)
	return role, ok
}

// ExtractToken extracts the raw session token from the request context
func ExtractToken(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(TokenKey).(string)
	return token, ok && token != ""
}
