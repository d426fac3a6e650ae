package rbac

import (
	"context"
	"strings"
)

// Checker answers permission questions for a role policy. Grants are exact
// names, "*" or a prefix ending in "*" such as "grading:*".
type Checker struct {
	exact    map[string]map[string]bool
	prefixes map[string][]string
}

func NewChecker(policy map[string][]string) *Checker {
	if policy == nil {
		policy = RolePermissions
	}
	c := &Checker{exact: map[string]map[string]bool{}, prefixes: map[string][]string{}}
	for role, grants := range policy {
		c.exact[role] = map[string]bool{}
		for _, g := range grants {
			if p, ok := strings.CutSuffix(g, "*"); ok {
				c.prefixes[role] = append(c.prefixes[role], p)
				continue
			}
			c.exact[role][g] = true
		}
	}
	return c
}

func (c *Checker) Has(role, perm string) bool {
	if c.exact[role][perm] {
		return true
	}
	for _, p := range c.prefixes[role] {
		if strings.HasPrefix(perm, p) {
			return true
		}
	}
	return false
}

func (c *Checker) Any(role string, perms ...string) bool {
	for _, p := range perms {
		if c.Has(role, p) {
			return true
		}
	}
	return false
}

type ctxKey struct{}

func WithRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, ctxKey{}, role)
}

func RoleFromContext(ctx context.Context) string {
	s, _ := ctx.Value(ctxKey{}).(string)
	return s
}

// OwnerOrAdmin reports whether the caller in ctx is admin or is owner.
func OwnerOrAdmin(ctx context.Context, caller, owner string) bool {
	return RoleFromContext(ctx) == RoleAdmin || (caller != "" && caller == owner)
}
