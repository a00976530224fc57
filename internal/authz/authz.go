// Package authz decides whether an actor may act on a catalog resource. Role
// permissions come from a casbin policy; non-admin actors must also own the
// target row.
package authz

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"

	"github.com/utafrali/mercadolocal/internal/domain"
	apperrors "github.com/utafrali/mercadolocal/pkg/errors"
)

//go:embed model.conf
var modelText string

// Resource kinds.
const (
	ObjectProduct      = "product"
	ObjectVendor       = "vendor"
	ObjectCategory     = "category"
	ObjectAnnouncement = "announcement"
	ObjectUser         = "user"
	ObjectSubscription = "subscription"
)

// Actions.
const (
	ActionCreate   = "create"
	ActionUpdate   = "update"
	ActionDelete   = "delete"
	ActionModerate = "moderate"
)

// Actor is the authenticated caller.
type Actor struct {
	UserID string
	Role   string
}

// OwnerLookup returns the user that owns a resource.
type OwnerLookup interface {
	OwnerOf(ctx context.Context, id string) (string, error)
}

// Guard authorizes catalog writes.
type Guard struct {
	enforcer *casbin.SyncedEnforcer
	owners   map[string]OwnerLookup
}

// NewGuard builds a guard with the built-in role policy. owners maps a
// resource kind to the lookup used for ownership checks.
func NewGuard(owners map[string]OwnerLookup) (*Guard, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, fmt.Errorf("load authz model: %w", err)
	}
	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("create enforcer: %w", err)
	}
	if _, err := enforcer.AddPolicies(policies()); err != nil {
		return nil, fmt.Errorf("seed policies: %w", err)
	}
	return &Guard{enforcer: enforcer, owners: owners}, nil
}

func subject(role string) string { return "role:" + role }

func policies() [][]string {
	vendor, admin := subject(domain.RoleVendor), subject(domain.RoleAdmin)
	return [][]string{
		{vendor, ObjectProduct, ActionCreate},
		{vendor, ObjectProduct, ActionUpdate},
		{vendor, ObjectProduct, ActionDelete},
		{vendor, ObjectVendor, ActionUpdate},
		{vendor, ObjectSubscription, ActionCreate},

		{admin, ObjectProduct, "*"},
		{admin, ObjectVendor, "*"},
		{admin, ObjectCategory, "*"},
		{admin, ObjectAnnouncement, "*"},
		{admin, ObjectUser, "*"},
		{admin, ObjectSubscription, "*"},
	}
}

// Authorize returns nil when actor may perform action on the resource of
// kind identified by id. An empty id skips the ownership check, as for
// creates. A resource the actor does not own is reported as not found.
func (g *Guard) Authorize(ctx context.Context, actor Actor, kind, id, action string) error {
	if actor.UserID == "" {
		return apperrors.Unauthorized("authentication required")
	}

	allowed, err := g.enforcer.Enforce(subject(actor.Role), kind, action)
	if err != nil {
		return fmt.Errorf("enforce %s %s: %w", kind, action, err)
	}
	if !allowed {
		return apperrors.Forbidden(fmt.Sprintf("role %q may not %s %s", actor.Role, action, kind))
	}

	if actor.Role == domain.RoleAdmin || id == "" {
		return nil
	}

	lookup, ok := g.owners[kind]
	if !ok {
		return apperrors.Forbidden(fmt.Sprintf("%s has no owner", kind))
	}
	owner, err := lookup.OwnerOf(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.NotFound(kind, id)
		}
		return err
	}
	if owner != actor.UserID {
		return apperrors.NotFound(kind, id)
	}
	return nil
}
