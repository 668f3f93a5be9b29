package sessionguard

import (
	"time"

	"github.com/MrEthical07/sessionguard/jwt"
	"github.com/MrEthical07/sessionguard/users"
)

// UserProvider looks up credentials for Login. See users.Static and
// users/postgres for the bundled implementations.
type UserProvider = users.Provider

// UserRecord is the credential record returned by a UserProvider.
type UserRecord = users.Record

// Role is the authorization level carried in every token.
type Role = jwt.Role

const (
	RoleSuperuser = jwt.RoleSuperuser
	RoleAdmin     = jwt.RoleAdmin
	RoleUser      = jwt.RoleUser
)

// Claims is the decoded claim set of a verified token.
type Claims = jwt.Claims

// TokenPair is the wire shape of a login or refresh response.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`

	SessionID        string    `json:"-"`
	AccessExpiresAt  time.Time `json:"-"`
	RefreshExpiresAt time.Time `json:"-"`
}

func newTokenPair(p jwt.Pair) TokenPair {
	return TokenPair{
		AccessToken:      p.Access,
		RefreshToken:     p.Refresh,
		TokenType:        "bearer",
		SessionID:        p.SessionID,
		AccessExpiresAt:  p.AccessExpiresAt,
		RefreshExpiresAt: p.RefreshExpiresAt,
	}
}

// LoginResult is returned by Engine.Login.
type LoginResult struct {
	TokenPair
	UserID string
	Role   Role
	// NeedsRehash reports that the stored hash uses a legacy scheme or weaker
	// parameters than the engine is configured with.
	NeedsRehash bool
}

// Payload is the identity view of a verified access token, as returned by
// Engine.Validate and the /validate endpoint.
type Payload struct {
	UserID        string   `json:"user_id"`
	Role          Role     `json:"role"`
	Exp           int64    `json:"exp"`
	Subscriptions []string `json:"subscriptions"`
}

// PayloadFromClaims builds the identity view of c.
func PayloadFromClaims(c *Claims) Payload {
	p := Payload{UserID: c.UserID, Role: c.Role, Subscriptions: c.Subscriptions}
	if c.ExpiresAt != nil {
		p.Exp = c.ExpiresAt.Unix()
	}
	if p.Subscriptions == nil {
		p.Subscriptions = []string{}
	}
	return p
}

// RateDecision describes one rate-limit check.
type RateDecision struct {
	Allowed bool
	// Count is the number of requests seen in the window before this one.
	Count      int64
	Limit      int
	RetryAfter time.Duration
}
