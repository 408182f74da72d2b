package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/cacheflow/cache"
)

const keyPrefix = "session:"

// DefaultTTL is applied when a session is saved without an explicit TTL.
const DefaultTTL = 24 * time.Hour

// SerializationError reports a session payload that could not be encoded
// or decoded. It is the only error this layer surfaces: it indicates a
// caller bug, not store unavailability, which always degrades to absent
// results instead.
type SerializationError struct {
	SessionID string
	Err       error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("session %s: serialization failed: %v", e.SessionID, e.Err)
}

func (e *SerializationError) Unwrap() error {
	return e.Err
}

// Session is the JSON document stored per session ID.
type Session struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id,omitempty"`
	Data      map[string]any `json:"data"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// New creates an unsaved session with a generated ID.
func New(userID string) *Session {
	now := time.Now()
	return &Session{
		ID:        uuid.New().String(),
		UserID:    userID,
		Data:      make(map[string]any),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Store persists sessions under `session:<id>` keys through the resilient
// manager. Every transport call runs behind the manager's circuit breaker,
// so a flaky store costs callers a missing session, never an error.
type Store struct {
	manager *cache.Manager
	ttl     time.Duration
	logger  *zap.Logger
}

// NewStore creates a session store over the shared manager.
func NewStore(manager *cache.Manager, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		manager: manager,
		ttl:     DefaultTTL,
		logger:  logger.With(zap.String("component", "session")),
	}
}

// key returns the Redis key for a session
func key(id string) string {
	return keyPrefix + id
}

// Save serializes and stores the session. The bool reports whether the
// write reached the store; the error is non-nil only for serialization
// failures.
func (s *Store) Save(ctx context.Context, sess *Session, ttl time.Duration) (bool, error) {
	if sess.ID == "" {
		sess.ID = uuid.New().String()
	}
	now := time.Now()
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = now
	}
	sess.UpdatedAt = now

	if ttl <= 0 {
		ttl = s.ttl
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return false, &SerializationError{SessionID: sess.ID, Err: err}
	}

	ok := s.manager.Set(ctx, key(sess.ID), data, ttl)
	if !ok {
		s.logger.Debug("session not persisted, store unavailable",
			zap.String("session_id", sess.ID))
	}
	return ok, nil
}

// Get loads a session by ID. A missing session and an unavailable store
// both return (nil, nil): callers branch on presence, never on transport
// health. A corrupt payload returns a SerializationError.
func (s *Store) Get(ctx context.Context, id string) (*Session, error) {
	data, found := s.manager.GetBytes(ctx, key(id))
	if !found {
		return nil, nil
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, &SerializationError{SessionID: id, Err: err}
	}
	return &sess, nil
}

// Delete removes a session and reports whether it existed.
func (s *Store) Delete(ctx context.Context, id string) bool {
	return s.manager.Delete(ctx, key(id)) > 0
}

// Touch extends a stored session's TTL without rewriting its payload.
func (s *Store) Touch(ctx context.Context, id string, ttl time.Duration) bool {
	if ttl <= 0 {
		ttl = s.ttl
	}
	return s.manager.Expire(ctx, key(id), ttl)
}
