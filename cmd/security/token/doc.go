// Package token provides hashing primitives for server-stored credentials.
//
// The refresh credential is never persisted in plaintext: only a 64-char hex
// digest of it lives on the user record, so a database leak does not hand out
// usable tokens.
//
// Modes:
//   - Dev/back-compat: SHA-256(token) when no HMAC key is configured.
//   - Production: HMAC-SHA256(token, key) when VIDTUBE_TOKEN_HMAC_KEY is set.
//     With VIDTUBE_REQUIRE_TOKEN_HMAC=true the key becomes mandatory
//     (>= 32 bytes) and the SHA fallback is refused at startup.
package token
