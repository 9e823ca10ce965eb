// Package session implements the credential lifecycle: issuing the
// access/refresh token pair, login, refresh rotation with replay detection,
// logout, and password changes.
//
// Access and refresh tokens are signed JWTs (HS256) with distinct secrets and
// lifetimes. A refresh token is additionally bound to a single server-side
// slot on the account record, stored hashed (HMAC-SHA256 when
// VIDTUBE_TOKEN_HMAC_KEY is set; otherwise SHA-256 for dev). Rotation
// consumes the slot with a compare-and-swap, so a replayed or raced token
// always loses.
//
// Transport (HTTP) integration is intentionally out of scope here.
package session
