package authz

import "context"

// Identity is the caller a request acts for. Every import and notification call is scoped to
// TenantID, and UserID receives the job's realtime events.
type Identity struct {
	TenantID string
	UserID   string
}

// Valid reports whether both parts of the identity are set.
func (id Identity) Valid() bool {
	return id.TenantID != "" && id.UserID != ""
}

type identityKey struct{}

// WithIdentity stores the caller on the context.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext returns the caller stored by WithIdentity. ok is false when none was stored or
// it is incomplete.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	if !ok || !id.Valid() {
		return Identity{}, false
	}
	return id, true
}
