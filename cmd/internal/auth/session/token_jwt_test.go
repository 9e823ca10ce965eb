package session

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	c, err := NewCodec(validTestConfig())
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	return c
}

func TestCodec_AccessRoundTrip(t *testing.T) {
	t.Parallel()

	c := newTestCodec(t)
	now := time.Now().UTC()

	tok, exp, err := c.IssueAccess(AccessTokenInput{
		UserID:   "01HZXF4Y7N0000000000000000",
		Username: "navid",
		Email:    "navid@example.com",
		FullName: "Navid Example",
	}, now)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if !exp.After(now) {
		t.Fatalf("expiry must be in the future")
	}

	claims, err := c.VerifyAccess(tok, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Subject != "01HZXF4Y7N0000000000000000" {
		t.Fatalf("wrong subject: %q", claims.Subject)
	}
	if claims.Username != "navid" || claims.Email != "navid@example.com" || claims.FullName != "Navid Example" {
		t.Fatalf("identity claims not carried: %+v", claims)
	}
}

func TestCodec_RefreshRoundTrip(t *testing.T) {
	t.Parallel()

	c := newTestCodec(t)
	now := time.Now().UTC()

	tok, exp, err := c.IssueRefresh("01HZXF4Y7N0000000000000000", now)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if exp.Sub(now) != DefaultConfig().RefreshTokenTTL {
		t.Fatalf("unexpected refresh lifetime: %v", exp.Sub(now))
	}

	uid, err := c.VerifyRefresh(tok, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if uid != "01HZXF4Y7N0000000000000000" {
		t.Fatalf("wrong subject: %q", uid)
	}
}

func TestCodec_CategoryConfusionRejected(t *testing.T) {
	t.Parallel()

	c := newTestCodec(t)
	now := time.Now().UTC()

	access, _, err := c.IssueAccess(AccessTokenInput{UserID: "u1"}, now)
	if err != nil {
		t.Fatalf("issue access: %v", err)
	}
	refresh, _, err := c.IssueRefresh("u1", now)
	if err != nil {
		t.Fatalf("issue refresh: %v", err)
	}

	if _, err := c.VerifyRefresh(access, now); !errors.Is(err, ErrRefreshInvalid) {
		t.Fatalf("access token must not verify as refresh, got: %v", err)
	}
	if _, err := c.VerifyAccess(refresh, now); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("refresh token must not verify as access, got: %v", err)
	}
}

func TestCodec_ExpiryAndSkew(t *testing.T) {
	t.Parallel()

	c := newTestCodec(t)
	now := time.Now().UTC()

	tok, exp, err := c.IssueAccess(AccessTokenInput{UserID: "u1"}, now)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	// Within the skew window after expiry still verifies.
	if _, err := c.VerifyAccess(tok, exp.Add(10*time.Second)); err != nil {
		t.Fatalf("verify within skew: %v", err)
	}

	// Beyond the window fails.
	if _, err := c.VerifyAccess(tok, exp.Add(time.Minute)); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expiry failure, got: %v", err)
	}
}

func TestCodec_TamperedAndForeignTokensRejected(t *testing.T) {
	t.Parallel()

	c := newTestCodec(t)
	now := time.Now().UTC()

	tok, _, err := c.IssueAccess(AccessTokenInput{UserID: "u1"}, now)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	tampered := tok[:len(tok)-2] + "xx"
	if _, err := c.VerifyAccess(tampered, now); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected tamper rejection, got: %v", err)
	}

	other := validTestConfig()
	other.AccessSecret = []byte(strings.Repeat("z", 32))
	oc, err := NewCodec(other)
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	foreign, _, err := oc.IssueAccess(AccessTokenInput{UserID: "u1"}, now)
	if err != nil {
		t.Fatalf("issue foreign: %v", err)
	}
	if _, err := c.VerifyAccess(foreign, now); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected secret mismatch rejection, got: %v", err)
	}

	if _, err := c.VerifyAccess("not-a-token", now); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected garbage rejection, got: %v", err)
	}
}
