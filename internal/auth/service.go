package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/civicore/backend/internal/audit"
	"github.com/civicore/backend/internal/models"
	"github.com/civicore/backend/internal/sessions"
)

var (
	// ErrInvalidCredentials is returned for unknown emails and wrong
	// passwords alike; callers cannot tell which.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrUserInactive is returned when the account exists but is not active.
	ErrUserInactive = errors.New("user is not active")
	// ErrTenantInactive is returned when the account's tenant is
	// suspended or inactive; no tokens are issued for it.
	ErrTenantInactive = errors.New("tenant is not active")
)

// UserStore is the narrow view of the user repository the auth flow needs.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	Create(ctx context.Context, u *models.User) error
}

// TenantStore resolves the tenant an account belongs to.
type TenantStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
}

// PasswordHasher abstracts the adaptive hash collaborator.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Check(password, hash string) bool
}

// TokenPair is the result of a successful login or refresh.
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Service orchestrates credentials, the session ledger and token issuance.
type Service struct {
	users   UserStore
	tenants TenantStore
	ledger  *sessions.Ledger
	jwt     *JWTService
	hasher  PasswordHasher
	sink    audit.Sink
	logger  *zap.Logger
}

// NewService creates an auth service.
func NewService(users UserStore, tenants TenantStore, ledger *sessions.Ledger, jwt *JWTService, hasher PasswordHasher, sink audit.Sink, logger *zap.Logger) *Service {
	if sink == nil {
		sink = audit.NopSink{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{users: users, tenants: tenants, ledger: ledger, jwt: jwt, hasher: hasher, sink: sink, logger: logger}
}

// Login authenticates credentials, opens a ledger session and issues the
// access/refresh pair. Every issue creates exactly one session row.
func (s *Service) Login(ctx context.Context, email, password, ip, userAgent string) (TokenPair, *models.User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return TokenPair{}, nil, ErrInvalidCredentials
	}
	if !s.hasher.Check(password, user.Password) {
		return TokenPair{}, nil, ErrInvalidCredentials
	}
	if user.Status != models.UserActive {
		return TokenPair{}, nil, ErrUserInactive
	}
	if err := s.checkTenant(ctx, user); err != nil {
		return TokenPair{}, nil, err
	}
	session, refreshToken, err := s.ledger.Create(ctx, user.ID, ip, userAgent)
	if err != nil {
		return TokenPair{}, nil, err
	}
	accessToken, expiresAt, err := s.jwt.Generate(user, session.ID)
	if err != nil {
		return TokenPair{}, nil, err
	}
	s.sink.Record(audit.Event{
		Action:    audit.ActionLogin,
		ActorID:   user.ID.String(),
		ActorRole: string(user.Role),
		TenantID:  tenantString(user),
		IP:        ip,
	})
	return TokenPair{AccessToken: accessToken, RefreshToken: refreshToken, ExpiresAt: expiresAt}, user, nil
}

// Refresh redeems a refresh token: the ledger rotates the session's
// token hash atomically, then a new access token is issued for the same
// session. All failures collapse to sessions.ErrSessionInvalid.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	session, newRefresh, err := s.ledger.Rotate(ctx, refreshToken)
	if err != nil {
		s.sink.Record(audit.Event{Action: audit.ActionRefreshDenied})
		return TokenPair{}, sessions.ErrSessionInvalid
	}
	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil || user.Status != models.UserActive {
		// The account vanished or was deactivated after rotation began;
		// terminate the lineage rather than hand out a token.
		_ = s.ledger.Revoke(ctx, session.ID)
		s.sink.Record(audit.Event{Action: audit.ActionRefreshDenied, ActorID: session.UserID.String()})
		return TokenPair{}, sessions.ErrSessionInvalid
	}
	if err := s.checkTenant(ctx, user); err != nil {
		if errors.Is(err, ErrTenantInactive) {
			_ = s.ledger.Revoke(ctx, session.ID)
			s.sink.Record(audit.Event{Action: audit.ActionRefreshDenied, ActorID: session.UserID.String(), TenantID: tenantString(user)})
			return TokenPair{}, sessions.ErrSessionInvalid
		}
		return TokenPair{}, err
	}
	accessToken, expiresAt, err := s.jwt.Generate(user, session.ID)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: accessToken, RefreshToken: newRefresh, ExpiresAt: expiresAt}, nil
}

// Logout revokes the session bound to the presented access token.
func (s *Service) Logout(ctx context.Context, user *models.User, sessionID uuid.UUID) error {
	if err := s.ledger.Revoke(ctx, sessionID); err != nil {
		return err
	}
	s.sink.Record(audit.Event{
		Action:    audit.ActionLogout,
		ActorID:   user.ID.String(),
		ActorRole: string(user.Role),
		TenantID:  tenantString(user),
	})
	return nil
}

// LogoutAll revokes every session of the user; sessions concurrently
// mid-refresh lose their rotation race at the storage layer.
func (s *Service) LogoutAll(ctx context.Context, user *models.User) error {
	if err := s.ledger.RevokeAll(ctx, user.ID); err != nil {
		return err
	}
	s.sink.Record(audit.Event{
		Action:    audit.ActionLogoutAll,
		ActorID:   user.ID.String(),
		ActorRole: string(user.Role),
		TenantID:  tenantString(user),
	})
	return nil
}

// RegisterParams holds self-registration input.
type RegisterParams struct {
	TenantID uuid.UUID
	Email    string
	Password string
	FullName string
}

// Register creates a tenant-scoped account with the default role. New
// accounts are pending until a manager activates them.
func (s *Service) Register(ctx context.Context, p RegisterParams) (*models.User, error) {
	hash, err := s.hasher.Hash(p.Password)
	if err != nil {
		return nil, err
	}
	tenantID := p.TenantID
	user := &models.User{
		ID:       uuid.New(),
		TenantID: &tenantID,
		Email:    p.Email,
		Password: hash,
		FullName: p.FullName,
		Role:     models.RoleUser,
		Status:   models.UserPending,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// checkTenant rejects token issuance for accounts whose tenant is not
// active. super_admin has no tenant and always passes.
func (s *Service) checkTenant(ctx context.Context, user *models.User) error {
	if user.TenantID == nil {
		return nil
	}
	tenant, err := s.tenants.GetByID(ctx, *user.TenantID)
	if err != nil {
		return err
	}
	if tenant.Status != models.TenantActive {
		return ErrTenantInactive
	}
	return nil
}

func tenantString(u *models.User) string {
	if u.TenantID == nil {
		return ""
	}
	return u.TenantID.String()
}
