package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/civicore/backend/internal/models"
)

// contextPrincipal is the gin context key for the authenticated principal.
const contextPrincipal = "principal"

// Principal is the authenticated identity attached to a request after
// the auth pipeline passes.
type Principal struct {
	User      *models.User
	SessionID uuid.UUID
}

// TenantID returns the principal's tenant, or uuid.Nil for super_admin.
func (p *Principal) TenantID() uuid.UUID {
	if p.User.TenantID == nil {
		return uuid.Nil
	}
	return *p.User.TenantID
}

// SetPrincipal attaches the principal to the request context.
func SetPrincipal(c *gin.Context, p *Principal) {
	c.Set(contextPrincipal, p)
}

// CurrentPrincipal returns the principal set by the auth pipeline.
func CurrentPrincipal(c *gin.Context) (*Principal, bool) {
	v, ok := c.Get(contextPrincipal)
	if !ok {
		return nil, false
	}
	p, ok := v.(*Principal)
	return p, ok
}
