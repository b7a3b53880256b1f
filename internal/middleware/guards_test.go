package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/civicore/backend/internal/audit"
	"github.com/civicore/backend/internal/models"
	"github.com/civicore/backend/pkg/response"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type staticChecker struct {
	codes map[string]bool
}

func (s staticChecker) HasPermission(_ context.Context, _ *models.User, code string) (bool, error) {
	return s.codes[code], nil
}

func (s staticChecker) HasAnyPermission(_ context.Context, _ *models.User, codes ...string) (bool, error) {
	for _, code := range codes {
		if s.codes[code] {
			return true, nil
		}
	}
	return false, nil
}

type captureSink struct {
	events []audit.Event
}

func (c *captureSink) Record(e audit.Event) { c.events = append(c.events, e) }

func principalFor(role models.Role, tenantID *uuid.UUID) *Principal {
	return &Principal{
		User:      &models.User{ID: uuid.New(), Role: role, Status: models.UserActive, TenantID: tenantID},
		SessionID: uuid.New(),
	}
}

// serve runs one request through the guard with an optional principal
// pre-attached, the way the auth pipeline would.
func serve(t *testing.T, guard gin.HandlerFunc, p *Principal, path, reqPath string) (*httptest.ResponseRecorder, response.Body) {
	t.Helper()
	router := gin.New()
	router.GET(path, func(c *gin.Context) {
		if p != nil {
			SetPrincipal(c, p)
		}
		c.Next()
	}, guard, func(c *gin.Context) {
		response.OK(c, gin.H{"reached": true})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, reqPath, nil)
	router.ServeHTTP(w, req)

	var body response.Body
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return w, body
}

func TestRequireRole(t *testing.T) {
	guards := NewGuards(staticChecker{}, nil)
	guard := guards.RequireRole(models.RoleManager)

	tests := []struct {
		name       string
		principal  *Principal
		wantStatus int
		wantError  string
	}{
		{"no principal", nil, http.StatusUnauthorized, response.CodeTokenMissing},
		{"below minimum", principalFor(models.RoleCoordinator, nil), http.StatusForbidden, response.CodeInsufficientPerms},
		{"at minimum", principalFor(models.RoleManager, nil), http.StatusOK, ""},
		{"above minimum", principalFor(models.RoleSuperAdmin, nil), http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, body := serve(t, guard, tt.principal, "/reports", "/reports")
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if body.Error != tt.wantError {
				t.Fatalf("error = %q, want %q", body.Error, tt.wantError)
			}
		})
	}
}

func TestRequireRoleDenialCarriesRequiredAndCurrent(t *testing.T) {
	sink := &captureSink{}
	guards := NewGuards(staticChecker{}, sink)
	p := principalFor(models.RoleUser, nil)

	w, body := serve(t, guards.RequireRole(models.RoleAdmin), p, "/admin", "/admin")
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
	if body.Required != string(models.RoleAdmin) {
		t.Errorf("required = %q, want %q", body.Required, models.RoleAdmin)
	}
	if body.Current != string(models.RoleUser) {
		t.Errorf("current = %q, want %q", body.Current, models.RoleUser)
	}
	if len(sink.events) != 1 || sink.events[0].Action != audit.ActionDenied {
		t.Fatalf("denial must be audited, got %v", sink.events)
	}
}

func TestRequireAnyRoleMatchesExactly(t *testing.T) {
	guards := NewGuards(staticChecker{}, nil)
	guard := guards.RequireAnyRole(models.RoleCoordinator, models.RoleManager)

	tests := []struct {
		role       models.Role
		wantStatus int
	}{
		{models.RoleCoordinator, http.StatusOK},
		{models.RoleManager, http.StatusOK},
		// Exact match only; outranking is not enough here.
		{models.RoleAdmin, http.StatusForbidden},
		{models.RoleUser, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			w, _ := serve(t, guard, principalFor(tt.role, nil), "/queue", "/queue")
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestRequirePermission(t *testing.T) {
	guards := NewGuards(staticChecker{codes: map[string]bool{"reports.view": true}}, nil)

	w, _ := serve(t, guards.RequirePermission("reports.view"), principalFor(models.RoleUser, nil), "/reports", "/reports")
	if w.Code != http.StatusOK {
		t.Fatalf("held permission: status = %d, want 200", w.Code)
	}

	w, body := serve(t, guards.RequirePermission("reports.export"), principalFor(models.RoleUser, nil), "/reports", "/reports")
	if w.Code != http.StatusForbidden {
		t.Fatalf("missing permission: status = %d, want 403", w.Code)
	}
	if body.Required != "reports.export" {
		t.Errorf("required = %q, want reports.export", body.Required)
	}
}

func TestRequireAnyPermission(t *testing.T) {
	guards := NewGuards(staticChecker{codes: map[string]bool{"reports.view": true}}, nil)
	guard := guards.RequireAnyPermission("reports.export", "reports.view")

	w, _ := serve(t, guard, principalFor(models.RoleUser, nil), "/reports", "/reports")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	none := NewGuards(staticChecker{}, nil).RequireAnyPermission("reports.export", "reports.view")
	w, _ = serve(t, none, principalFor(models.RoleUser, nil), "/reports", "/reports")
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
}

func TestRequireTenantAccess(t *testing.T) {
	tenantA := uuid.New()
	tenantB := uuid.New()

	tests := []struct {
		name       string
		principal  *Principal
		reqTenant  string
		wantStatus int
		wantError  string
	}{
		{"own tenant", principalFor(models.RoleManager, &tenantA), tenantA.String(), http.StatusOK, ""},
		{"foreign tenant", principalFor(models.RoleManager, &tenantA), tenantB.String(), http.StatusForbidden, response.CodeAccessDenied},
		{"no tenant bound", principalFor(models.RoleManager, nil), tenantA.String(), http.StatusForbidden, response.CodeAccessDenied},
		{"malformed id", principalFor(models.RoleManager, &tenantA), "not-a-uuid", http.StatusBadRequest, response.CodeValidation},
		{"no principal", nil, tenantA.String(), http.StatusUnauthorized, response.CodeTokenMissing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			guards := NewGuards(staticChecker{}, nil)
			w, body := serve(t, guards.RequireTenantAccess("id"), tt.principal, "/tenants/:id", "/tenants/"+tt.reqTenant)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if body.Error != tt.wantError {
				t.Fatalf("error = %q, want %q", body.Error, tt.wantError)
			}
		})
	}
}

func TestTenantBypassIsAudited(t *testing.T) {
	sink := &captureSink{}
	guards := NewGuards(staticChecker{}, sink)
	admin := principalFor(models.RoleSuperAdmin, nil)
	tenant := uuid.New()

	w, _ := serve(t, guards.RequireTenantAccess("id"), admin, "/tenants/:id", "/tenants/"+tenant.String())
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if len(sink.events) != 1 {
		t.Fatalf("recorded %d audit events, want 1", len(sink.events))
	}
	event := sink.events[0]
	if event.Action != audit.ActionTenantBypass {
		t.Errorf("action = %s, want %s", event.Action, audit.ActionTenantBypass)
	}
	if event.TenantID != tenant.String() {
		t.Errorf("tenant = %s, want %s", event.TenantID, tenant)
	}
	if event.ActorID != admin.User.ID.String() {
		t.Errorf("actor = %s, want %s", event.ActorID, admin.User.ID)
	}
}

func TestRequireSelfAccess(t *testing.T) {
	self := principalFor(models.RoleUser, nil)
	other := uuid.New()

	tests := []struct {
		name       string
		principal  *Principal
		target     string
		wantStatus int
	}{
		{"own id", self, self.User.ID.String(), http.StatusOK},
		{"other id", self, other.String(), http.StatusForbidden},
		{"super admin any id", principalFor(models.RoleSuperAdmin, nil), other.String(), http.StatusOK},
		{"malformed id", self, "not-a-uuid", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			guards := NewGuards(staticChecker{}, nil)
			w, _ := serve(t, guards.RequireSelfAccess("id"), tt.principal, "/users/:id", "/users/"+tt.target)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}
