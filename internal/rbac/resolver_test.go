package rbac

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/civicore/backend/internal/audit"
	"github.com/civicore/backend/internal/models"
)

type fakeStore struct {
	grants     map[uuid.UUID]map[string]uuid.UUID
	grantCalls int
	err        error
}

func newFakeStore() *fakeStore {
	return &fakeStore{grants: make(map[uuid.UUID]map[string]uuid.UUID)}
}

func (f *fakeStore) GrantCodes(_ context.Context, userID uuid.UUID) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	var codes []string
	for code := range f.grants[userID] {
		codes = append(codes, code)
	}
	return codes, nil
}

func (f *fakeStore) Grant(_ context.Context, userID uuid.UUID, code string, grantedBy uuid.UUID) error {
	if f.err != nil {
		return f.err
	}
	f.grantCalls++
	if f.grants[userID] == nil {
		f.grants[userID] = make(map[string]uuid.UUID)
	}
	if _, held := f.grants[userID][code]; !held {
		f.grants[userID][code] = grantedBy
	}
	return nil
}

func (f *fakeStore) Revoke(_ context.Context, userID uuid.UUID, code string) error {
	if f.err != nil {
		return f.err
	}
	delete(f.grants[userID], code)
	return nil
}

func (f *fakeStore) ListGrants(_ context.Context, userID uuid.UUID) ([]models.GrantDetail, error) {
	var out []models.GrantDetail
	for code, by := range f.grants[userID] {
		out = append(out, models.GrantDetail{Code: code, GrantedBy: by})
	}
	return out, nil
}

func (f *fakeStore) ListCatalog(_ context.Context) ([]models.Permission, error) {
	return nil, nil
}

type fakeCache struct {
	entries     map[uuid.UUID][]string
	hits        int
	misses      int
	invalidated []uuid.UUID
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[uuid.UUID][]string)}
}

func (f *fakeCache) Get(_ context.Context, userID uuid.UUID) ([]string, bool) {
	codes, ok := f.entries[userID]
	if ok {
		f.hits++
	} else {
		f.misses++
	}
	return codes, ok
}

func (f *fakeCache) Set(_ context.Context, userID uuid.UUID, codes []string) {
	f.entries[userID] = codes
}

func (f *fakeCache) Invalidate(_ context.Context, userID uuid.UUID) {
	delete(f.entries, userID)
	f.invalidated = append(f.invalidated, userID)
}

type recordingSink struct {
	events []audit.Event
}

func (r *recordingSink) Record(e audit.Event) { r.events = append(r.events, e) }

func userWithRole(role models.Role, tenantID *uuid.UUID) *models.User {
	return &models.User{ID: uuid.New(), Role: role, Status: models.UserActive, TenantID: tenantID}
}

func TestHasPermissionCombinesRoleAndGrants(t *testing.T) {
	tenant := uuid.New()
	store := newFakeStore()
	resolver := NewResolver(store, newFakeCache(), nil, nil)

	user := userWithRole(models.RoleUser, &tenant)
	store.grants[user.ID] = map[string]uuid.UUID{PermReportsView: uuid.New()}

	tests := []struct {
		name string
		code string
		want bool
	}{
		{"role implied", PermProtocolsCreate, true},
		{"explicit grant", PermReportsView, true},
		{"held by neither", PermProtocolsApprove, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolver.HasPermission(context.Background(), user, tt.code)
			if err != nil {
				t.Fatalf("HasPermission: %v", err)
			}
			if got != tt.want {
				t.Fatalf("HasPermission(%s) = %v, want %v", tt.code, got, tt.want)
			}
		})
	}
}

func TestHasPermissionSuperAdminSkipsStore(t *testing.T) {
	store := newFakeStore()
	store.err = errors.New("store must not be consulted")
	resolver := NewResolver(store, newFakeCache(), nil, nil)

	admin := userWithRole(models.RoleSuperAdmin, nil)
	ok, err := resolver.HasPermission(context.Background(), admin, PermTenantsManage)
	if err != nil {
		t.Fatalf("HasPermission: %v", err)
	}
	if !ok {
		t.Fatal("super_admin must hold every permission")
	}
}

func TestHasPermissionUsesCache(t *testing.T) {
	tenant := uuid.New()
	store := newFakeStore()
	cache := newFakeCache()
	resolver := NewResolver(store, cache, nil, nil)
	user := userWithRole(models.RoleGuest, &tenant)

	// First miss populates the cache, second query hits it.
	for i := 0; i < 2; i++ {
		if _, err := resolver.HasPermission(context.Background(), user, PermReportsView); err != nil {
			t.Fatalf("HasPermission #%d: %v", i, err)
		}
	}
	if cache.misses != 1 || cache.hits != 1 {
		t.Fatalf("cache misses=%d hits=%d, want 1 and 1", cache.misses, cache.hits)
	}

	// A stale cache entry answers until invalidated; the store is the
	// truth only after the explicit drop.
	store.grants[user.ID] = map[string]uuid.UUID{PermReportsView: uuid.New()}
	ok, _ := resolver.HasPermission(context.Background(), user, PermReportsView)
	if ok {
		t.Fatal("cached answer expected before invalidation")
	}
	resolver.InvalidateUser(context.Background(), user.ID)
	ok, _ = resolver.HasPermission(context.Background(), user, PermReportsView)
	if !ok {
		t.Fatal("fresh grant not visible after invalidation")
	}
}

func TestCanManageUser(t *testing.T) {
	tenantA := uuid.New()
	tenantB := uuid.New()
	resolver := NewResolver(newFakeStore(), newFakeCache(), nil, nil)

	tests := []struct {
		name    string
		manager *models.User
		target  *models.User
		want    bool
	}{
		{"outranks in same tenant", userWithRole(models.RoleAdmin, &tenantA), userWithRole(models.RoleUser, &tenantA), true},
		{"equal rank", userWithRole(models.RoleManager, &tenantA), userWithRole(models.RoleManager, &tenantA), false},
		{"lower rank", userWithRole(models.RoleUser, &tenantA), userWithRole(models.RoleAdmin, &tenantA), false},
		{"cross tenant", userWithRole(models.RoleAdmin, &tenantA), userWithRole(models.RoleUser, &tenantB), false},
		{"manager without tenant", userWithRole(models.RoleAdmin, nil), userWithRole(models.RoleUser, &tenantA), false},
		{"super admin cross tenant", userWithRole(models.RoleSuperAdmin, nil), userWithRole(models.RoleAdmin, &tenantB), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := resolver.CanManageUser(tt.manager, tt.target); got != tt.want {
				t.Fatalf("CanManageUser = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGrantIsIdempotent(t *testing.T) {
	tenant := uuid.New()
	store := newFakeStore()
	sink := &recordingSink{}
	resolver := NewResolver(store, newFakeCache(), sink, nil)

	actor := userWithRole(models.RoleAdmin, &tenant)
	target := userWithRole(models.RoleUser, &tenant)

	for i := 0; i < 2; i++ {
		if err := resolver.Grant(context.Background(), target, PermReportsExport, actor); err != nil {
			t.Fatalf("grant #%d: %v", i, err)
		}
	}
	if got := len(store.grants[target.ID]); got != 1 {
		t.Fatalf("target holds %d grants, want 1", got)
	}
	// Both attempts are audited even though the second changed nothing.
	if len(sink.events) != 2 {
		t.Fatalf("recorded %d audit events, want 2", len(sink.events))
	}
	if sink.events[0].Action != audit.ActionGrant {
		t.Fatalf("audit action = %s, want %s", sink.events[0].Action, audit.ActionGrant)
	}
}

func TestGrantRejectsUnknownCode(t *testing.T) {
	tenant := uuid.New()
	resolver := NewResolver(newFakeStore(), newFakeCache(), nil, nil)
	actor := userWithRole(models.RoleAdmin, &tenant)
	target := userWithRole(models.RoleUser, &tenant)

	err := resolver.Grant(context.Background(), target, "protocols.delete", actor)
	if !errors.Is(err, ErrUnknownPermission) {
		t.Fatalf("Grant(unknown) = %v, want ErrUnknownPermission", err)
	}
}

func TestGrantRequiresAuthority(t *testing.T) {
	tenantA := uuid.New()
	tenantB := uuid.New()

	tests := []struct {
		name  string
		actor *models.User
	}{
		{"lacks permissions.manage", userWithRole(models.RoleManager, &tenantA)},
		{"cross tenant admin", userWithRole(models.RoleAdmin, &tenantB)},
		{"same rank admin", userWithRole(models.RoleUser, &tenantA)},
	}
	target := userWithRole(models.RoleUser, &tenantA)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &recordingSink{}
			resolver := NewResolver(newFakeStore(), newFakeCache(), sink, nil)
			err := resolver.Grant(context.Background(), target, PermReportsView, tt.actor)
			if !errors.Is(err, ErrNotAuthorized) {
				t.Fatalf("Grant = %v, want ErrNotAuthorized", err)
			}
			// The denial itself must reach the audit sink.
			if len(sink.events) != 1 {
				t.Fatalf("recorded %d audit events, want 1", len(sink.events))
			}
			event := sink.events[0]
			if event.Action != audit.ActionDenied {
				t.Errorf("action = %s, want %s", event.Action, audit.ActionDenied)
			}
			if event.ActorID != tt.actor.ID.String() {
				t.Errorf("actor = %s, want %s", event.ActorID, tt.actor.ID)
			}
			if event.TargetID != target.ID.String() {
				t.Errorf("target = %s, want %s", event.TargetID, target.ID)
			}
			if event.Required != PermPermissionsManage {
				t.Errorf("required = %s, want %s", event.Required, PermPermissionsManage)
			}
		})
	}
}

func TestRevokeDenialIsAudited(t *testing.T) {
	tenant := uuid.New()
	sink := &recordingSink{}
	resolver := NewResolver(newFakeStore(), newFakeCache(), sink, nil)
	actor := userWithRole(models.RoleManager, &tenant)
	target := userWithRole(models.RoleUser, &tenant)

	if err := resolver.Revoke(context.Background(), target, PermReportsView, actor); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("Revoke = %v, want ErrNotAuthorized", err)
	}
	if len(sink.events) != 1 || sink.events[0].Action != audit.ActionDenied {
		t.Fatalf("denial not audited: %v", sink.events)
	}
}

func TestRevokeDropsGrantAndCache(t *testing.T) {
	tenant := uuid.New()
	store := newFakeStore()
	cache := newFakeCache()
	resolver := NewResolver(store, cache, nil, nil)

	actor := userWithRole(models.RoleAdmin, &tenant)
	target := userWithRole(models.RoleUser, &tenant)

	if err := resolver.Grant(context.Background(), target, PermReportsView, actor); err != nil {
		t.Fatalf("grant: %v", err)
	}
	ok, _ := resolver.HasPermission(context.Background(), target, PermReportsView)
	if !ok {
		t.Fatal("grant not visible")
	}
	if err := resolver.Revoke(context.Background(), target, PermReportsView, actor); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	ok, _ = resolver.HasPermission(context.Background(), target, PermReportsView)
	if ok {
		t.Fatal("revoked grant still visible")
	}
	// Revoking an absent code is not an error.
	if err := resolver.Revoke(context.Background(), target, PermReportsView, actor); err != nil {
		t.Fatalf("second revoke: %v", err)
	}
}
