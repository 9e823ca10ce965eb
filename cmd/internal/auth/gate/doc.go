// Package gate guards HTTP routes with access-token verification.
//
// The middleware accepts the token from the accessToken cookie or an
// Authorization: Bearer header, verifies it, reloads the account so deleted
// users are locked out immediately, and attaches the account to the request
// context. Every failure is a uniform 401.
package gate
