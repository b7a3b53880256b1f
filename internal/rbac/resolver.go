package rbac

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/civicore/backend/internal/audit"
	"github.com/civicore/backend/internal/models"
)

var (
	// ErrUnknownPermission is returned for codes absent from the catalog.
	ErrUnknownPermission = errors.New("unknown permission code")
	// ErrNotAuthorized is returned when the acting user lacks the
	// authority for a grant or revoke.
	ErrNotAuthorized = errors.New("not authorized to manage permissions")
)

// Store persists explicit permission grants.
type Store interface {
	// GrantCodes returns the permission codes explicitly granted to a user.
	GrantCodes(ctx context.Context, userID uuid.UUID) ([]string, error)
	// Grant records a grant; granting an already-held code is a no-op.
	Grant(ctx context.Context, userID uuid.UUID, code string, grantedBy uuid.UUID) error
	// Revoke removes a grant; revoking an absent code is a no-op.
	Revoke(ctx context.Context, userID uuid.UUID, code string) error
	// ListGrants returns grant details for a user.
	ListGrants(ctx context.Context, userID uuid.UUID) ([]models.GrantDetail, error)
	// ListCatalog returns the seeded permission catalog.
	ListCatalog(ctx context.Context) ([]models.Permission, error)
}

// Resolver answers permission questions by combining the precomputed
// role sets with explicit grants.
type Resolver struct {
	store  Store
	cache  GrantCache
	sink   audit.Sink
	logger *zap.Logger
}

// NewResolver creates a permission resolver.
func NewResolver(store Store, cache GrantCache, sink audit.Sink, logger *zap.Logger) *Resolver {
	if cache == nil {
		cache = NopGrantCache{}
	}
	if sink == nil {
		sink = audit.NopSink{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{store: store, cache: cache, sink: sink, logger: logger}
}

// HasPermission reports whether the user holds code, either via the
// role-implied set or an explicit grant. super_admin short-circuits true.
func (r *Resolver) HasPermission(ctx context.Context, user *models.User, code string) (bool, error) {
	if user.IsSuperAdmin() {
		return true, nil
	}
	if RoleImplies(user.Role, code) {
		return true, nil
	}
	codes, ok := r.cache.Get(ctx, user.ID)
	if !ok {
		var err error
		codes, err = r.store.GrantCodes(ctx, user.ID)
		if err != nil {
			return false, err
		}
		r.cache.Set(ctx, user.ID, codes)
	}
	for _, c := range codes {
		if c == code {
			return true, nil
		}
	}
	return false, nil
}

// HasAnyPermission reports whether the user holds at least one of codes.
func (r *Resolver) HasAnyPermission(ctx context.Context, user *models.User, codes ...string) (bool, error) {
	for _, code := range codes {
		ok, err := r.HasPermission(ctx, user, code)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// CanManageUser reports whether manager may act on target: super_admin
// always; otherwise same tenant and strictly higher role.
func (r *Resolver) CanManageUser(manager, target *models.User) bool {
	if manager.IsSuperAdmin() {
		return true
	}
	if manager.TenantID == nil || target.TenantID == nil {
		return false
	}
	if *manager.TenantID != *target.TenantID {
		return false
	}
	return manager.Role.Outranks(target.Role)
}

// Grant records an explicit permission override for target. The acting
// user must hold permissions.manage and be able to manage the target.
// Granting an already-held code succeeds without effect.
func (r *Resolver) Grant(ctx context.Context, target *models.User, code string, grantedBy *models.User) error {
	if !KnownCode(code) {
		return ErrUnknownPermission
	}
	if err := r.requireManageAuthority(ctx, grantedBy, target, code); err != nil {
		return err
	}
	if err := r.store.Grant(ctx, target.ID, code, grantedBy.ID); err != nil {
		return err
	}
	r.cache.Invalidate(ctx, target.ID)
	r.sink.Record(audit.Event{
		Action:    audit.ActionGrant,
		ActorID:   grantedBy.ID.String(),
		ActorRole: string(grantedBy.Role),
		TargetID:  target.ID.String(),
		Required:  code,
	})
	return nil
}

// Revoke removes an explicit grant. Revoking a code the user does not
// hold succeeds without effect.
func (r *Resolver) Revoke(ctx context.Context, target *models.User, code string, revokedBy *models.User) error {
	if !KnownCode(code) {
		return ErrUnknownPermission
	}
	if err := r.requireManageAuthority(ctx, revokedBy, target, code); err != nil {
		return err
	}
	if err := r.store.Revoke(ctx, target.ID, code); err != nil {
		return err
	}
	r.cache.Invalidate(ctx, target.ID)
	r.sink.Record(audit.Event{
		Action:    audit.ActionRevoke,
		ActorID:   revokedBy.ID.String(),
		ActorRole: string(revokedBy.Role),
		TargetID:  target.ID.String(),
		Required:  code,
	})
	return nil
}

// InvalidateUser drops cached grants, e.g. after a role change.
func (r *Resolver) InvalidateUser(ctx context.Context, userID uuid.UUID) {
	r.cache.Invalidate(ctx, userID)
}

// ListGrants returns the explicit grants for a user.
func (r *Resolver) ListGrants(ctx context.Context, userID uuid.UUID) ([]models.GrantDetail, error) {
	return r.store.ListGrants(ctx, userID)
}

// ListCatalog returns the permission catalog.
func (r *Resolver) ListCatalog(ctx context.Context) ([]models.Permission, error) {
	return r.store.ListCatalog(ctx)
}

// requireManageAuthority checks the actor can manage permissions on the
// target. Denials are audited before the error surfaces.
func (r *Resolver) requireManageAuthority(ctx context.Context, actor, target *models.User, code string) error {
	ok, err := r.HasPermission(ctx, actor, PermPermissionsManage)
	if err != nil {
		return err
	}
	if !ok || !r.CanManageUser(actor, target) {
		r.sink.Record(audit.Event{
			Action:    audit.ActionDenied,
			ActorID:   actor.ID.String(),
			ActorRole: string(actor.Role),
			TargetID:  target.ID.String(),
			Required:  PermPermissionsManage,
			Detail:    code,
		})
		return ErrNotAuthorized
	}
	return nil
}
