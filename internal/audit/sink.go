// Package audit ships authorization events to a Redis list consumed by
// the platform audit collaborator. Recording is fire-and-forget: it must
// never block or fail a request on the auth decision path.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// StreamKey is the Redis list key the audit collaborator consumes.
const StreamKey = "audit:auth"

// recordTimeout bounds the fire-and-forget write so goroutines cannot
// pile up behind a dead Redis.
const recordTimeout = 5 * time.Second

// Event actions recorded by the auth core.
const (
	ActionLogin         = "auth.login"
	ActionLogout        = "auth.logout"
	ActionLogoutAll     = "auth.logout_all"
	ActionRefreshDenied = "auth.refresh_denied"
	ActionGrant         = "permission.grant"
	ActionRevoke        = "permission.revoke"
	ActionDenied        = "authz.denied"
	ActionTenantBypass  = "tenant.bypass"
)

// Event is a single audit record.
type Event struct {
	ID         uuid.UUID `json:"id"`
	OccurredAt time.Time `json:"occurred_at"`
	Action     string    `json:"action"`
	ActorID    string    `json:"actor_id,omitempty"`
	ActorRole  string    `json:"actor_role,omitempty"`
	TenantID   string    `json:"tenant_id,omitempty"`
	TargetID   string    `json:"target_id,omitempty"`
	Required   string    `json:"required,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	IP         string    `json:"ip,omitempty"`
}

// Sink receives audit events.
type Sink interface {
	Record(event Event)
}

// RedisSink pushes JSON events onto a Redis list.
type RedisSink struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisSink creates a Redis-backed audit sink.
func NewRedisSink(client *redis.Client, logger *zap.Logger) *RedisSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisSink{client: client, logger: logger}
}

// Record enqueues the event asynchronously. Failures are logged and dropped;
// audit delivery is best-effort and never gates an auth decision.
func (s *RedisSink) Record(event Event) {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()
		raw, err := json.Marshal(event)
		if err != nil {
			s.logger.Warn("audit marshal failed", zap.Error(err), zap.String("action", event.Action))
			return
		}
		if err := s.client.RPush(ctx, StreamKey, raw).Err(); err != nil {
			s.logger.Warn("audit push failed", zap.Error(err), zap.String("action", event.Action))
		}
	}()
}

// NopSink discards events; used in tests.
type NopSink struct{}

// Record implements Sink.
func (NopSink) Record(Event) {}
