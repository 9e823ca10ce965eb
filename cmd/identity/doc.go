// Package identity implements vidtube's account foundation.
//
// It owns the users table: registration, lookups by id/username/email,
// profile updates, and the single refresh-credential slot that the session
// layer rotates. Password hashes and the refresh slot never leave this
// package except through the explicit auth-only surfaces (UserAuth).
package identity
