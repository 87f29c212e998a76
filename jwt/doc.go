// Package jwt encodes and decodes the signed access and refresh tokens issued
// by portfolioAuth.
//
// Tokens are compact JWS strings signed with an asymmetric key (Ed25519 or
// RS256). The private key is held only by the issuer; any holder of the
// public key can verify. A "type" claim discriminates access tokens from
// refresh tokens so one can never be presented in place of the other.
//
// # Decoding contract
//
// Decode never returns an error. Any malformed, mistyped, expired, or
// signature-invalid token decodes to nil; callers treat that as an expected
// outcome rather than an exceptional one.
//
// # What this package must NOT do
//
//   - Consult the session store. Liveness of a refresh token is decided by
//     the caller, not by the codec.
//   - Accept symmetric or "none" algorithms.
package jwt
