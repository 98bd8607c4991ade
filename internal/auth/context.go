package auth

import "context"

type identityKey struct{}

type identity struct {
	role    Role
	subject string
}

// WithIdentity stores the authenticated role and subject in ctx.
func WithIdentity(ctx context.Context, role Role, subject string) context.Context {
	return context.WithValue(ctx, identityKey{}, identity{role: role, subject: subject})
}

// RoleFromContext returns the authenticated role, or "" for anonymous requests.
func RoleFromContext(ctx context.Context) Role {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(identityKey{}).(identity)
	return id.role
}

// SubjectFromContext returns the token subject, or "".
func SubjectFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(identityKey{}).(identity)
	return id.subject
}
