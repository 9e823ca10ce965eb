package identity

import (
	"vidtube/cmd/security/password"
)

// HashPassword returns a PHC-style Argon2id hash of the plaintext, applying
// the environment-configured cost parameters and length policy.
func HashPassword(plain string) (string, error) {
	cfg, err := password.FromEnv()
	if err != nil {
		// Invalid env is an operational error, not an excuse for a weak
		// fallback.
		return "", err
	}
	return cfg.Hash(plain)
}

// VerifyPassword checks a plaintext against a stored PHC Argon2id hash.
// Returns (true, nil) on match, (false, nil) on mismatch.
func VerifyPassword(plain string, encodedPHC string) (bool, error) {
	cfg, err := password.FromEnv()
	if err != nil {
		return false, err
	}
	return cfg.Verify(encodedPHC, plain)
}
