package auth

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/civicore/backend/internal/middleware"
	"github.com/civicore/backend/internal/models"
	"github.com/civicore/backend/internal/sessions"
	"github.com/civicore/backend/internal/users"
	"github.com/civicore/backend/pkg/response"
)

// RegisterRequest is the body for POST /auth/register.
type RegisterRequest struct {
	TenantID uuid.UUID `json:"tenant_id" binding:"required"`
	Email    string    `json:"email" binding:"required,email"`
	Password string    `json:"password" binding:"required,min=8"`
	FullName string    `json:"full_name" binding:"required"`
}

// LoginRequest is the body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// RefreshRequest is the body for POST /auth/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// TokenResponse is the auth response with the token pair.
type TokenResponse struct {
	TokenPair
	User models.UserPublic `json:"user"`
}

// Handler handles auth HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates an auth handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Register handles POST /auth/register.
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, response.CodeValidation)
		return
	}
	user, err := h.svc.Register(c.Request.Context(), RegisterParams{
		TenantID: req.TenantID,
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
	})
	if err != nil {
		if errors.Is(err, users.ErrEmailTaken) {
			response.Conflict(c, response.CodeEmailTaken)
			return
		}
		h.logger.Error("register", zap.Error(err))
		response.Internal(c)
		return
	}
	response.Created(c, user.ToPublic())
}

// Login handles POST /auth/login.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, response.CodeValidation)
		return
	}
	pair, user, err := h.svc.Login(c.Request.Context(), req.Email, req.Password, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidCredentials):
			response.Unauthorized(c, response.CodeInvalidCredentials)
		case errors.Is(err, ErrUserInactive):
			response.Unauthorized(c, response.CodeUserInactive)
		case errors.Is(err, ErrTenantInactive):
			response.Forbidden(c, response.CodeAccessDenied, "", "")
		default:
			h.logger.Error("login", zap.Error(err))
			response.Internal(c)
		}
		return
	}
	response.OK(c, TokenResponse{TokenPair: pair, User: user.ToPublic()})
}

// Refresh handles POST /auth/refresh. Any ledger failure surfaces as
// SESSION_INVALID; clients must re-authenticate.
func (h *Handler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, response.CodeValidation)
		return
	}
	pair, err := h.svc.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, sessions.ErrSessionInvalid) {
			response.Unauthorized(c, response.CodeSessionInvalid)
			return
		}
		h.logger.Error("refresh", zap.Error(err))
		response.Internal(c)
		return
	}
	response.OK(c, pair)
}

// Logout handles POST /auth/logout; revokes the presenting session.
func (h *Handler) Logout(c *gin.Context) {
	p, ok := middleware.CurrentPrincipal(c)
	if !ok {
		response.Unauthorized(c, response.CodeTokenMissing)
		return
	}
	if err := h.svc.Logout(c.Request.Context(), p.User, p.SessionID); err != nil {
		h.logger.Error("logout", zap.Error(err))
		response.Internal(c)
		return
	}
	response.NoContent(c)
}

// LogoutAll handles POST /auth/logout-all; revokes every session of the user.
func (h *Handler) LogoutAll(c *gin.Context) {
	p, ok := middleware.CurrentPrincipal(c)
	if !ok {
		response.Unauthorized(c, response.CodeTokenMissing)
		return
	}
	if err := h.svc.LogoutAll(c.Request.Context(), p.User); err != nil {
		h.logger.Error("logout all", zap.Error(err))
		response.Internal(c)
		return
	}
	response.NoContent(c)
}

// Me handles GET /auth/me.
func (h *Handler) Me(c *gin.Context) {
	p, ok := middleware.CurrentPrincipal(c)
	if !ok {
		response.Unauthorized(c, response.CodeTokenMissing)
		return
	}
	response.OK(c, p.User.ToPublic())
}
