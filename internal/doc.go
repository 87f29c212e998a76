// Package internal contains helpers that are private to portfolioAuth:
// token id generation and request fingerprint hashing.
//
// # Sub-packages
//
//   - rate: Redis-backed fixed-window counters used to throttle authentication
//   - security: the configuration posture report behind Engine.SecurityReport
//
// # What this package must NOT do
//
//   - Export types that appear in the public portfolioAuth API.
//   - Be imported by any package outside the portfolioAuth module.
package internal
