package jwt

import (
	"slices"

	"github.com/golang-jwt/jwt/v5"
)

// Role is the coarse authorization class carried by every token.
type Role string

const (
	RoleSuperuser Role = "superuser"
	RoleAdmin     Role = "admin"
	RoleUser      Role = "user"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSuperuser, RoleAdmin, RoleUser:
		return true
	default:
		return false
	}
}

// ParseRole maps a stored role name onto a Role.
func ParseRole(s string) (Role, bool) {
	r := Role(s)
	return r, r.Valid()
}

// TokenType distinguishes the two halves of a token pair.
type TokenType string

const (
	TokenAccess  TokenType = "access"
	TokenRefresh TokenType = "refresh"
)

// Claims is the signed payload of both access and refresh tokens.
//
// The two tokens of one pair differ only in TokenType and ExpiresAt; SessionID
// is shared so that a logout can prove the pair belongs together.
type Claims struct {
	UserID        string    `json:"user_id"`
	Role          Role      `json:"role"`
	Subscriptions []string  `json:"subscriptions"`
	SessionID     string    `json:"sid,omitempty"`
	TokenType     TokenType `json:"token_type,omitempty"`
	jwt.RegisteredClaims
}

// SamePair reports whether a and b carry identical claims once the expiry and
// the token type are ignored.
func SamePair(a, b *Claims) bool {
	if a == nil || b == nil {
		return false
	}
	if a.UserID != b.UserID || a.Role != b.Role || a.SessionID != b.SessionID {
		return false
	}
	if !slices.Equal(a.Subscriptions, b.Subscriptions) {
		return false
	}
	if a.Issuer != b.Issuer || a.Subject != b.Subject || a.ID != b.ID {
		return false
	}
	if !slices.Equal(a.Audience, b.Audience) {
		return false
	}
	return sameDate(a.IssuedAt, b.IssuedAt) && sameDate(a.NotBefore, b.NotBefore)
}

func sameDate(a, b *jwt.NumericDate) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Unix() == b.Unix()
}
