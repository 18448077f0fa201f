package rbac

import (
	"context"
	"strings"
)

// Policy answers whether a role holds a permission.
type Policy struct {
	grants map[string][]string
}

// NewPolicy falls back to RolePermissions when grants is nil.
func NewPolicy(grants map[string][]string) *Policy {
	if grants == nil {
		grants = RolePermissions
	}
	return &Policy{grants: grants}
}

func (p *Policy) Allows(role, perm string) bool {
	for _, g := range p.grants[role] {
		if g == perm {
			return true
		}
		if prefix, ok := strings.CutSuffix(g, "*"); ok && strings.HasPrefix(perm, prefix) {
			return true
		}
	}
	return false
}

type roleKey struct{}

// WithRole stores the caller's role for Require.
func WithRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, roleKey{}, role)
}

func RoleFromContext(ctx context.Context) string {
	role, _ := ctx.Value(roleKey{}).(string)
	return role
}
