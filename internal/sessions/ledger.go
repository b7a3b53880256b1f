// Package sessions implements the server-side refresh-token ledger.
// Each login creates one session row; each refresh rotates its token
// hash with a conditional update so concurrent redemptions of the same
// token have exactly one winner.
package sessions

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/civicore/backend/internal/models"
)

// ErrSessionInvalid collapses every refresh failure (unknown, consumed,
// revoked, expired) into one opaque error so callers cannot distinguish
// a stolen token from a stale one.
var ErrSessionInvalid = errors.New("session invalid")

// Store persists sessions. Rotate must be an atomic conditional update
// at the storage layer; it is the only concurrency-control point.
type Store interface {
	Create(ctx context.Context, session *models.Session) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error)
	// Rotate swaps the token hash only if the stored hash still equals
	// oldHash and the session is not revoked. Returns ErrSessionInvalid
	// when the condition fails.
	Rotate(ctx context.Context, sessionID uuid.UUID, oldHash, newHash string, expiresAt time.Time) error
	Revoke(ctx context.Context, sessionID uuid.UUID) error
	RevokeAll(ctx context.Context, userID uuid.UUID) error
}

// Ledger manages session lifecycle and opaque refresh tokens.
type Ledger struct {
	store Store
	ttl   time.Duration
	now   func() time.Time
}

// NewLedger creates a session ledger. ttl is the refresh-token lifetime.
func NewLedger(store Store, ttl time.Duration) *Ledger {
	return &Ledger{store: store, ttl: ttl, now: time.Now}
}

// WithClock overrides the time source; used in tests.
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

// Create opens a session for the user and returns it with the opaque
// refresh token. The raw token is returned exactly once.
func (l *Ledger) Create(ctx context.Context, userID uuid.UUID, ip, userAgent string) (*models.Session, string, error) {
	secret, hash, err := newSecret()
	if err != nil {
		return nil, "", err
	}
	now := l.now().UTC()
	session := &models.Session{
		ID:        uuid.New(),
		UserID:    userID,
		TokenHash: hash,
		CreatedAt: now,
		ExpiresAt: now.Add(l.ttl),
		IP:        ip,
		UserAgent: userAgent,
	}
	if err := l.store.Create(ctx, session); err != nil {
		return nil, "", err
	}
	return session, encodeToken(session.ID, secret), nil
}

// Validate resolves a refresh token to its usable session, or
// ErrSessionInvalid.
func (l *Ledger) Validate(ctx context.Context, refreshToken string) (*models.Session, error) {
	sessionID, secret, err := decodeToken(refreshToken)
	if err != nil {
		return nil, ErrSessionInvalid
	}
	session, err := l.store.GetByID(ctx, sessionID)
	if err != nil {
		return nil, ErrSessionInvalid
	}
	if !session.Usable(l.now()) {
		return nil, ErrSessionInvalid
	}
	if !hashEqual(session.TokenHash, secret) {
		return nil, ErrSessionInvalid
	}
	return session, nil
}

// ValidateSession checks that a session referenced by an access token is
// still active; used by the request middleware.
func (l *Ledger) ValidateSession(ctx context.Context, sessionID uuid.UUID) error {
	session, err := l.store.GetByID(ctx, sessionID)
	if err != nil {
		return ErrSessionInvalid
	}
	if !session.Usable(l.now()) {
		return ErrSessionInvalid
	}
	return nil
}

// Rotate redeems a refresh token: the old hash is atomically replaced by
// a new one, invalidating the redeemed token before the new one can be
// used. Exactly one concurrent caller wins; losers get ErrSessionInvalid.
func (l *Ledger) Rotate(ctx context.Context, refreshToken string) (*models.Session, string, error) {
	session, err := l.Validate(ctx, refreshToken)
	if err != nil {
		return nil, "", ErrSessionInvalid
	}
	secret, newHash, err := newSecret()
	if err != nil {
		return nil, "", err
	}
	expiresAt := l.now().UTC().Add(l.ttl)
	if err := l.store.Rotate(ctx, session.ID, session.TokenHash, newHash, expiresAt); err != nil {
		return nil, "", ErrSessionInvalid
	}
	session.TokenHash = newHash
	session.ExpiresAt = expiresAt
	return session, encodeToken(session.ID, secret), nil
}

// Revoke terminates one session; revoking twice is a no-op.
func (l *Ledger) Revoke(ctx context.Context, sessionID uuid.UUID) error {
	return l.store.Revoke(ctx, sessionID)
}

// RevokeAll terminates every session of a user. Sessions mid-refresh
// lose their race against the revoke at the storage layer.
func (l *Ledger) RevokeAll(ctx context.Context, userID uuid.UUID) error {
	return l.store.RevokeAll(ctx, userID)
}

// newSecret produces a random token secret and its stored hash.
func newSecret() (secret, hash string, err error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", err
	}
	secret = base64.RawURLEncoding.EncodeToString(buf)
	return secret, hashSecret(secret), nil
}

func hashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

func hashEqual(storedHash, secret string) bool {
	actual := hashSecret(secret)
	if len(storedHash) != len(actual) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(storedHash), []byte(actual)) == 1
}

// encodeToken joins the session id and secret into the opaque wire form.
func encodeToken(sessionID uuid.UUID, secret string) string {
	return sessionID.String() + "." + secret
}

func decodeToken(raw string) (uuid.UUID, string, error) {
	parts := strings.SplitN(raw, ".", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return uuid.Nil, "", errors.New("malformed refresh token")
	}
	id, err := uuid.Parse(parts[0])
	if err != nil {
		return uuid.Nil, "", err
	}
	return id, parts[1], nil
}
