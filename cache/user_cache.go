package cache

import (
	"context"
	"time"
)

// UserCache namespaces keys by user identity so callers cannot collide
// across users while still sharing one transport. It is a pure delegation
// layer over the Manager: correctness relies on key namespacing plus the
// backing store's per-key atomicity, so it holds no locks of its own.
type UserCache struct {
	manager *Manager
}

// NewUserCache creates a user-scoped view over the shared manager.
func NewUserCache(manager *Manager) *UserCache {
	return &UserCache{manager: manager}
}

const userKeyPrefix = "user:"

// userKey builds the namespaced key for a user-scoped entry.
// Identifiers are treated as opaque; callers supply IDs without the
// ':' separator.
func userKey(userID, key string) string {
	return userKeyPrefix + userID + ":" + key
}

// Set stores a value in the user's namespace.
func (u *UserCache) Set(ctx context.Context, userID, key string, value interface{}, ttl time.Duration) bool {
	return u.manager.Set(ctx, userKey(userID, key), value, ttl)
}

// Get reads a value from the user's namespace.
func (u *UserCache) Get(ctx context.Context, userID, key string) (string, bool) {
	return u.manager.Get(ctx, userKey(userID, key))
}

// Clear removes a single entry from the user's namespace and reports
// whether anything was deleted.
func (u *UserCache) Clear(ctx context.Context, userID, key string) bool {
	return u.manager.Delete(ctx, userKey(userID, key)) > 0
}

// SetJSON stores a JSON-serialized value in the user's namespace.
// The error is non-nil only for serialization failures.
func (u *UserCache) SetJSON(ctx context.Context, userID, key string, value interface{}, ttl time.Duration) (bool, error) {
	return u.manager.SetJSON(ctx, userKey(userID, key), value, ttl)
}

// GetJSON reads a JSON value from the user's namespace into dest.
func (u *UserCache) GetJSON(ctx context.Context, userID, key string, dest interface{}) (bool, error) {
	return u.manager.GetJSON(ctx, userKey(userID, key), dest)
}

// ClearAll removes every cached entry for the user. Pattern-based scan,
// intended for logout and account-deletion paths rather than hot request
// handling.
func (u *UserCache) ClearAll(ctx context.Context, userID string) int64 {
	keys := u.manager.Keys(ctx, userKeyPrefix+userID+":*")
	if len(keys) == 0 {
		return 0
	}
	return u.manager.Delete(ctx, keys...)
}
