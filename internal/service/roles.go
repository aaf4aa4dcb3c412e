package service

import (
	"context"
	"strings"
	"time"

	"github.com/Ross11547/Automatizacion/internal/cache"
	"github.com/Ross11547/Automatizacion/internal/repository"
)

// RoleResolver maps role names to ids through a TTL cache. Roles almost never
// change, so lookups hit the database at most once per TTL per name.
type RoleResolver struct {
	roles  repository.RoleRepository
	lookup *cache.Lookup[string]
}

func NewRoleResolver(roles repository.RoleRepository, ttl time.Duration) *RoleResolver {
	r := &RoleResolver{roles: roles}
	r.lookup = cache.NewLookup(ttl, r.load)
	return r
}

func (r *RoleResolver) load(ctx context.Context, name string) (string, error) {
	role, err := r.roles.GetByName(ctx, name)
	if err != nil {
		return "", err
	}
	return role.ID, nil
}

// ID returns the id of the named role, case-insensitively. A missing role is
// apperror.ErrNotFound and is not cached.
func (r *RoleResolver) ID(ctx context.Context, name string) (string, error) {
	return r.lookup.Get(ctx, strings.ToLower(name))
}

// Invalidate drops the cached id of name.
func (r *RoleResolver) Invalidate(name string) {
	r.lookup.Invalidate(strings.ToLower(name))
}
