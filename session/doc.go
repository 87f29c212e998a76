// Package session provides the Redis-backed registry of live and banned
// refresh sessions.
//
// # Key layout
//
// Every key is prefixed with the configured prefix:
//
//	tokens:{subject}:{token_id}:{device_id}   live session record (TTL = refresh lifetime)
//	banned:{subject}:{token_id}:{device_id}   banned record, kept for audit until the same TTL
//	sessions:{subject}                        ZSET of "{token_id}:{device_id}" scored by creation time
//
// Banned records live in a separate namespace, so a banned session fails every
// live lookup by construction.
//
// # Binary encoding
//
// Records are stored as a compact versioned binary blob. The ban reason is
// always the final length-prefixed field so the ban script can append it in
// place with SETRANGE, keeping the original TTL.
//
// # Atomicity
//
// Register, Rotate, Delete and Ban are single Lua scripts or MULTI/EXEC
// transactions. No in-process locks are used.
//
// # What this package must NOT do
//
//   - Import portfolioAuth or jwt (no upward imports).
//   - Store plaintext tokens or fingerprints; only hashes are persisted.
//   - Report a Redis failure as "session not found".
package session
