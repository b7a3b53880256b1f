package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/civicore/backend/internal/middleware"
	"github.com/civicore/backend/internal/models"
	"github.com/civicore/backend/internal/users"
	"github.com/civicore/backend/pkg/response"
)

// UserLoader loads the principal's user record.
type UserLoader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// SessionChecker validates that the session bound to an access token is
// still active.
type SessionChecker interface {
	ValidateSession(ctx context.Context, sessionID uuid.UUID) error
}

// Middleware returns the per-request auth pipeline: bearer extraction,
// token verification, user load, session validation, principal attach.
// Each stage short-circuits with its own error code.
func Middleware(jwtService *JWTService, userLoader UserLoader, checker SessionChecker, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Unauthorized(c, response.CodeTokenMissing)
			c.Abort()
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.Unauthorized(c, response.CodeTokenInvalid)
			c.Abort()
			return
		}

		claims, err := jwtService.Verify(parts[1])
		if err != nil {
			if errors.Is(err, ErrTokenExpired) {
				response.Unauthorized(c, response.CodeTokenExpired)
			} else {
				response.Unauthorized(c, response.CodeTokenInvalid)
			}
			c.Abort()
			return
		}

		user, err := userLoader.GetByID(c.Request.Context(), claims.UserID())
		if err != nil {
			if errors.Is(err, users.ErrNotFound) {
				response.Unauthorized(c, response.CodeUserNotFound)
			} else {
				logger.Error("load principal", zap.Error(err))
				response.Internal(c)
			}
			c.Abort()
			return
		}
		if user.Status != models.UserActive {
			response.Unauthorized(c, response.CodeUserInactive)
			c.Abort()
			return
		}

		if claims.SessionID != uuid.Nil {
			if err := checker.ValidateSession(c.Request.Context(), claims.SessionID); err != nil {
				response.Unauthorized(c, response.CodeSessionInvalid)
				c.Abort()
				return
			}
		}

		middleware.SetPrincipal(c, &middleware.Principal{User: user, SessionID: claims.SessionID})
		c.Next()
	}
}
