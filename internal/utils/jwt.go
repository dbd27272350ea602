// Package utils provides token issuing, password hashing and address
// generation helpers shared by repositories and handlers.
package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token types carried in the "typ" claim. A refresh token is never
// accepted where an access token is required and vice versa.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// ErrInvalidToken is returned for any token that fails validation:
// bad signature, expired, malformed claims or wrong type. Callers must
// not distinguish the cause externally.
var ErrInvalidToken = errors.New("invalid token")

// Claims is the decoded view of a cabinet JWT. Subject carries the
// account's external id. Fresh is true only on access tokens minted
// directly from a password login; refreshing never produces a fresh token.
type Claims struct {
	Subject string
	Role    string
	Fresh   bool
	JTI     string
	Type    string
	Exp     time.Time
}

// SignedToken couples a serialized JWT with its identifying claims.
type SignedToken struct {
	Token string
	JTI   string
	Exp   time.Time
}

// NewAccessToken signs an HS256 access token for the account. fresh marks
// tokens issued straight from password verification; they unlock the
// admin mutations and API registration.
func NewAccessToken(secret, subject, role string, fresh bool, ttl time.Duration) (SignedToken, error) {
	return newToken(secret, subject, role, TokenTypeAccess, fresh, ttl)
}

// NewRefreshToken signs an HS256 refresh token. Its jti is persisted
// server-side so the token can be rotated and revoked.
func NewRefreshToken(secret, subject, role string, ttl time.Duration) (SignedToken, error) {
	return newToken(secret, subject, role, TokenTypeRefresh, false, ttl)
}

func newToken(secret, subject, role, typ string, fresh bool, ttl time.Duration) (SignedToken, error) {
	now := time.Now().UTC()
	exp := now.Add(ttl)
	jti := uuid.NewString()
	claims := jwt.MapClaims{
		"sub":   subject,
		"role":  role,
		"typ":   typ,
		"fresh": fresh,
		"jti":   jti,
		"exp":   exp.Unix(),
		"iat":   now.Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return SignedToken{}, err
	}
	return SignedToken{Token: signed, JTI: jti, Exp: exp}, nil
}

// ParseToken validates signature, expiry and token type, returning the
// decoded claims. All failures collapse into ErrInvalidToken.
func ParseToken(secret, raw, wantType string) (Claims, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(secret), nil
	})
	if err != nil || !tok.Valid {
		return Claims{}, ErrInvalidToken
	}
	mc, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, ErrInvalidToken
	}
	var c Claims
	if c.Subject, ok = mc["sub"].(string); !ok || c.Subject == "" {
		return Claims{}, ErrInvalidToken
	}
	if c.JTI, ok = mc["jti"].(string); !ok || c.JTI == "" {
		return Claims{}, ErrInvalidToken
	}
	if c.Type, ok = mc["typ"].(string); !ok || c.Type != wantType {
		return Claims{}, ErrInvalidToken
	}
	c.Role, _ = mc["role"].(string)
	c.Fresh, _ = mc["fresh"].(bool)
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		c.Exp = exp.Time
	}
	return c, nil
}
