// Package rate implements Redis-backed fixed-window counters used to throttle
// authentication attempts and credential renewals.
//
// # Window semantics
//
// INCR followed by PEXPIRE on the first hit of a window, executed as one Lua
// script so a crash between the two cannot leave a counter without a TTL.
// Key layout (after the configured prefix):
//   - rl:login:{email}   failed authentications per email
//   - rl:device:{device} failed authentications per device id
//   - rl:renew:{subject} renewals per subject
//
// # What this package must NOT do
//
//   - Decide what happens when a limit is hit; callers map ErrRateLimited.
//   - Be imported outside the portfolioAuth module.
package rate
