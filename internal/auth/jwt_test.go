package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/civicore/backend/internal/models"
)

func TestGenerateVerifyRoundTrip(t *testing.T) {
	svc := NewJWTService("test-secret", "civicore", 15*time.Minute)
	tenantID := uuid.New()
	sessionID := uuid.New()
	user := &models.User{
		ID:       uuid.New(),
		TenantID: &tenantID,
		Role:     models.RoleCoordinator,
		Status:   models.UserActive,
	}

	token, expiresAt, err := svc.Generate(user, sessionID)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !expiresAt.After(time.Now()) {
		t.Fatal("expiry must lie in the future")
	}

	claims, err := svc.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.UserID() != user.ID {
		t.Errorf("subject = %s, want %s", claims.UserID(), user.ID)
	}
	if claims.Role != models.RoleCoordinator {
		t.Errorf("role = %s, want %s", claims.Role, models.RoleCoordinator)
	}
	if claims.TenantID == nil || *claims.TenantID != tenantID {
		t.Errorf("tenant = %v, want %s", claims.TenantID, tenantID)
	}
	if claims.SessionID != sessionID {
		t.Errorf("session = %s, want %s", claims.SessionID, sessionID)
	}
}

func TestVerifyDistinguishesExpiry(t *testing.T) {
	current := time.Now()
	svc := NewJWTService("test-secret", "civicore", 15*time.Minute).
		WithClock(func() time.Time { return current })
	user := &models.User{ID: uuid.New(), Role: models.RoleUser}

	token, _, err := svc.Generate(user, uuid.New())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	current = current.Add(16 * time.Minute)
	if _, err := svc.Verify(token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("Verify(expired) = %v, want ErrTokenExpired", err)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	signer := NewJWTService("secret-a", "civicore", 15*time.Minute)
	verifier := NewJWTService("secret-b", "civicore", 15*time.Minute)
	user := &models.User{ID: uuid.New(), Role: models.RoleUser}

	token, _, err := signer.Generate(user, uuid.New())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := verifier.Verify(token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("Verify(wrong secret) = %v, want ErrTokenInvalid", err)
	}
}

func TestVerifyRejectsWrongIssuer(t *testing.T) {
	signer := NewJWTService("test-secret", "someone-else", 15*time.Minute)
	verifier := NewJWTService("test-secret", "civicore", 15*time.Minute)
	user := &models.User{ID: uuid.New(), Role: models.RoleUser}

	token, _, err := signer.Generate(user, uuid.New())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := verifier.Verify(token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("Verify(wrong issuer) = %v, want ErrTokenInvalid", err)
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	svc := NewJWTService("test-secret", "civicore", 15*time.Minute)
	for _, token := range []string{"", "garbage", "a.b.c"} {
		if _, err := svc.Verify(token); !errors.Is(err, ErrTokenInvalid) {
			t.Errorf("Verify(%q) = %v, want ErrTokenInvalid", token, err)
		}
	}
}
