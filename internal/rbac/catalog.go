package rbac

import (
	"github.com/civicore/backend/internal/models"
)

// Permission codes, "resource.action" shaped. The typed constants are the
// application-boundary form; the strings are the storage and wire form.
const (
	PermProtocolsRead     = "protocols.read"
	PermProtocolsCreate   = "protocols.create"
	PermProtocolsUpdate   = "protocols.update"
	PermProtocolsAssign   = "protocols.assign"
	PermProtocolsApprove  = "protocols.approve"
	PermDocumentsRead     = "documents.read"
	PermDocumentsUpload   = "documents.upload"
	PermReportsView       = "reports.view"
	PermReportsExport     = "reports.export"
	PermUsersRead         = "users.read"
	PermUsersCreate       = "users.create"
	PermUsersUpdate       = "users.update"
	PermPermissionsManage = "permissions.manage"
	PermTenantsRead       = "tenants.read"
	PermTenantsManage     = "tenants.manage"
	PermAuditRead         = "audit.read"
)

// CatalogEntry seeds the immutable permissions table.
type CatalogEntry struct {
	Code        string
	Resource    string
	Action      string
	Description string
}

// Catalog is the canonical permission set. Seeded once at migration time;
// entries are never removed.
var Catalog = []CatalogEntry{
	{PermProtocolsRead, "protocols", "read", "View protocols"},
	{PermProtocolsCreate, "protocols", "create", "File new protocols"},
	{PermProtocolsUpdate, "protocols", "update", "Edit protocol details"},
	{PermProtocolsAssign, "protocols", "assign", "Assign protocols to handlers"},
	{PermProtocolsApprove, "protocols", "approve", "Approve or reject protocols"},
	{PermDocumentsRead, "documents", "read", "View attached documents"},
	{PermDocumentsUpload, "documents", "upload", "Attach documents"},
	{PermReportsView, "reports", "view", "View department reports"},
	{PermReportsExport, "reports", "export", "Export report data"},
	{PermUsersRead, "users", "read", "View tenant users"},
	{PermUsersCreate, "users", "create", "Create tenant users"},
	{PermUsersUpdate, "users", "update", "Update tenant users"},
	{PermPermissionsManage, "permissions", "manage", "Grant and revoke permission overrides"},
	{PermTenantsRead, "tenants", "read", "View tenant details"},
	{PermTenantsManage, "tenants", "manage", "Manage tenant accounts"},
	{PermAuditRead, "audit", "read", "Read audit trail"},
}

// directPermissions lists permissions each role introduces on top of the
// role below it. Inheritance is resolved once in buildImplied, not by
// runtime fallthrough.
var directPermissions = map[models.Role][]string{
	models.RoleGuest: {
		PermProtocolsRead,
	},
	models.RoleUser: {
		PermProtocolsCreate,
		PermDocumentsRead,
		PermDocumentsUpload,
	},
	models.RoleCoordinator: {
		PermProtocolsUpdate,
		PermProtocolsAssign,
		PermReportsView,
	},
	models.RoleManager: {
		PermProtocolsApprove,
		PermReportsExport,
		PermUsersRead,
		PermUsersUpdate,
	},
	models.RoleAdmin: {
		PermUsersCreate,
		PermPermissionsManage,
		PermTenantsRead,
		PermAuditRead,
	},
	models.RoleSuperAdmin: {
		PermTenantsManage,
	},
}

// implied maps each role to its full cumulative permission set.
var implied map[models.Role]map[string]struct{}

func init() {
	implied = buildImplied()
}

// buildImplied folds the ordered hierarchy so each role's set is its
// parent's set plus its direct permissions.
func buildImplied() map[models.Role]map[string]struct{} {
	sets := make(map[models.Role]map[string]struct{}, len(models.Roles()))
	inherited := map[string]struct{}{}
	for _, role := range models.Roles() {
		set := make(map[string]struct{}, len(inherited)+len(directPermissions[role]))
		for code := range inherited {
			set[code] = struct{}{}
		}
		for _, code := range directPermissions[role] {
			set[code] = struct{}{}
		}
		sets[role] = set
		inherited = set
	}
	return sets
}

// RoleImplies reports whether the role's cumulative set contains code.
// super_admin implies every catalog code.
func RoleImplies(role models.Role, code string) bool {
	if role == models.RoleSuperAdmin {
		return true
	}
	set, ok := implied[role]
	if !ok {
		return false
	}
	_, ok = set[code]
	return ok
}

// ImpliedPermissions returns a copy of the role's cumulative set.
func ImpliedPermissions(role models.Role) map[string]struct{} {
	src := implied[role]
	out := make(map[string]struct{}, len(src))
	for code := range src {
		out[code] = struct{}{}
	}
	return out
}

// KnownCode reports whether code exists in the catalog.
func KnownCode(code string) bool {
	for _, e := range Catalog {
		if e.Code == code {
			return true
		}
	}
	return false
}
