package session

import (
	"crypto/subtle"

	"vidtube/cmd/security/token"
)

// hashRefreshToken maps a refresh token to its stored slot value.
// Keyed with HMAC-SHA256 when VIDTUBE_TOKEN_HMAC_KEY is set.
func hashRefreshToken(plain string) string {
	return token.HashRefreshTokenHex(plain)
}

// ctEqHex64 compares two 64-char hex digests in constant time.
func ctEqHex64(a, b string) bool {
	if len(a) != 64 || len(b) != 64 {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
