// Package session persists user sessions as JSON documents in the shared
// cache, keyed by `session:<id>`. Availability follows the cache: when the
// store is down, reads return absent and writes report not-persisted.
package session
