// Package portfolioAuth is the authentication and session-lifecycle layer of
// the portfolio backend. It issues short-lived access tokens and long-lived
// refresh tokens, tracks refresh sessions per device in Redis, rotates them
// on renewal and gates use cases on a role hierarchy.
//
// # Roles
//
// Roles form a total order, GUEST < BAN < USER < MODERATOR < ADMIN. A
// [Guard] built for role R admits any caller whose role is at least R.
//
// # Credentials lifecycle
//
//	Login/Authenticate → access + refresh, one session per (user, device)
//	Authorize          → access token only, no Redis round-trip
//	Guard              → on an invalid access token: ResolveSubject → user
//	                     lookup → RenewCredentials → Authorize, new pair to the sink
//	Logout/LogoutAll   → session removal; access tokens live until expiry
//
// # What this package must NOT do
//
//   - Hold process-wide state. Everything hangs off an [Engine] built with
//     [New]...[Builder.Build].
//   - Treat a Redis outage as an anonymous caller. Store failures always
//     surface as [ErrStoreUnavailable].
//   - Persist raw refresh tokens or raw client fingerprints.
package portfolioAuth
