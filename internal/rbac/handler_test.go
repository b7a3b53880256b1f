package rbac

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/civicore/backend/internal/middleware"
	"github.com/civicore/backend/internal/models"
	"github.com/civicore/backend/internal/users"
	"github.com/civicore/backend/pkg/response"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type loaderFunc func(ctx context.Context, id uuid.UUID) (*models.User, error)

func (f loaderFunc) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return f(ctx, id)
}

func TestGrantTargetLoadErrorMapping(t *testing.T) {
	tenant := uuid.New()
	actor := userWithRole(models.RoleAdmin, &tenant)

	tests := []struct {
		name       string
		loaderErr  error
		wantStatus int
		wantError  string
	}{
		{"unknown target", users.ErrNotFound, http.StatusNotFound, response.CodeNotFound},
		{"store failure", errors.New("connection reset"), http.StatusInternalServerError, response.CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loader := loaderFunc(func(_ context.Context, _ uuid.UUID) (*models.User, error) {
				return nil, tt.loaderErr
			})
			resolver := NewResolver(newFakeStore(), newFakeCache(), nil, nil)
			h := NewHandler(resolver, loader, zap.NewNop())

			router := gin.New()
			router.POST("/users/:id/permissions", func(c *gin.Context) {
				middleware.SetPrincipal(c, &middleware.Principal{User: actor, SessionID: uuid.New()})
				c.Next()
			}, h.Grant)

			var buf bytes.Buffer
			if err := json.NewEncoder(&buf).Encode(GrantRequest{Code: PermReportsView}); err != nil {
				t.Fatalf("encode body: %v", err)
			}
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/users/"+uuid.New().String()+"/permissions", &buf)
			req.Header.Set("Content-Type", "application/json")
			router.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			var body response.Body
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if body.Error != tt.wantError {
				t.Fatalf("error = %q, want %q", body.Error, tt.wantError)
			}
		})
	}
}
