package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token categories carried in the "cat" claim. Verification rejects a token
// presented for the wrong category even before the secret mismatch would.
const (
	categoryAccess  = "access"
	categoryRefresh = "refresh"
)

// AccessClaims is the decoded payload of an access token. The identity
// fields are a convenience projection for clients; the server always treats
// Subject as authoritative and reloads the account on guarded requests.
type AccessClaims struct {
	jwt.RegisteredClaims

	Category string `json:"cat"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	FullName string `json:"fullname,omitempty"`
}

// refreshClaims is the minimal refresh payload: subject plus category.
type refreshClaims struct {
	jwt.RegisteredClaims

	Category string `json:"cat"`
}

// Codec signs and verifies the two token categories with HS256 and two
// distinct secrets.
type Codec struct {
	cfg Config
}

// NewCodec validates cfg and constructs a Codec.
func NewCodec(cfg Config) (*Codec, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Codec{cfg: cfg}, nil
}

// AccessTokenInput carries the identity fields embedded into access tokens.
type AccessTokenInput struct {
	UserID   string
	Username string
	Email    string
	FullName string
}

// IssueAccess mints a short-lived access token.
func (c *Codec) IssueAccess(in AccessTokenInput, now time.Time) (token string, exp time.Time, err error) {
	if in.UserID == "" {
		return "", time.Time{}, ErrInvalidToken
	}
	exp = now.Add(c.cfg.AccessTokenTTL)

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.cfg.Issuer,
			Subject:   in.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Category: categoryAccess,
		Username: in.Username,
		Email:    in.Email,
		FullName: in.FullName,
	})

	token, err = t.SignedString(c.cfg.AccessSecret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, exp, nil
}

// IssueRefresh mints a long-lived refresh token carrying only the subject.
func (c *Codec) IssueRefresh(userID string, now time.Time) (token string, exp time.Time, err error) {
	if userID == "" {
		return "", time.Time{}, ErrInvalidToken
	}
	exp = now.Add(c.cfg.RefreshTokenTTL)

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, refreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.cfg.Issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Category: categoryRefresh,
	})

	token, err = t.SignedString(c.cfg.RefreshSecret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, exp, nil
}

// VerifyAccess checks signature, lifetime, issuer and category of an access
// token. All failures collapse to ErrInvalidToken.
func (c *Codec) VerifyAccess(token string, now time.Time) (AccessClaims, error) {
	claims := AccessClaims{}
	err := c.parse(token, &claims, c.cfg.AccessSecret, now)
	if err != nil {
		return AccessClaims{}, ErrInvalidToken
	}
	if claims.Category != categoryAccess || claims.Subject == "" {
		return AccessClaims{}, ErrInvalidToken
	}
	return claims, nil
}

// VerifyRefresh checks a refresh token and returns its subject.
// All failures collapse to ErrRefreshInvalid.
func (c *Codec) VerifyRefresh(token string, now time.Time) (userID string, err error) {
	claims := refreshClaims{}
	if err := c.parse(token, &claims, c.cfg.RefreshSecret, now); err != nil {
		return "", ErrRefreshInvalid
	}
	if claims.Category != categoryRefresh || claims.Subject == "" {
		return "", ErrRefreshInvalid
	}
	return claims.Subject, nil
}

func (c *Codec) parse(token string, claims jwt.Claims, secret []byte, now time.Time) error {
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(t *jwt.Token) (any, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(c.cfg.ClockSkew),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		return err
	}
	if !parsed.Valid {
		return ErrInvalidToken
	}
	return nil
}
