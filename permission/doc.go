// Package permission defines the ordered role enumeration and the immutable
// authorization context produced by every authorization decision.
//
// # Ordering
//
// Roles form a total order: GUEST < BAN < USER < MODERATOR < ADMIN.
// Comparisons are numeric; [Context.Satisfies] is the single comparison used
// by guards.
//
// # Architecture boundaries
//
// This package is a pure in-memory value model with no I/O. The jwt, session
// and root packages depend on it; it depends on none of them.
//
// # What this package must NOT do
//
//   - Access Redis, databases, or the network.
//   - Import portfolioAuth, jwt, or session.
//   - Expose setters on Context.
package permission
