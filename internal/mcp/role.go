package mcp

import "context"

// Role is the writer/reader distinction the transport signals per request.
// The core assumes authenticated/authorized input and enforces nothing
// beyond this distinction (bearer tokens, RBAC, rate limiting belong to the
// transport layer).
type Role string

const (
	RoleWriter Role = "writer"
	RoleReader Role = "reader"
)

type roleContextKey struct{}

// WithRole attaches a Role to ctx for the duration of a single request.
func WithRole(ctx context.Context, role Role) context.Context {
	return context.WithValue(ctx, roleContextKey{}, role)
}

// RoleFromContext returns the Role attached to ctx, defaulting to RoleReader
// when none was set (fail closed: an un-annotated request may not write).
func RoleFromContext(ctx context.Context) Role {
	if role, ok := ctx.Value(roleContextKey{}).(Role); ok {
		return role
	}
	return RoleReader
}

// IsWriter reports whether ctx carries writer role.
func IsWriter(ctx context.Context) bool {
	return RoleFromContext(ctx) == RoleWriter
}
