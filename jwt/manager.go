package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrMalformed covers every decode failure other than expiry: bad structure,
	// bad signature, wrong algorithm, wrong issuer or missing identity claims.
	ErrMalformed = errors.New("malformed token")
	// ErrExpired is returned when a correctly signed token is past its expiry.
	ErrExpired = errors.New("token expired")
	// ErrMissingClaim is returned by Issue when the subject or role is empty.
	ErrMissingClaim = errors.New("missing required claim")
	// ErrInvalidRole is returned by Issue for roles outside the known set.
	ErrInvalidRole = errors.New("invalid role")
	// ErrWrongTokenType is returned by DecodeAs when the token is of the other kind.
	ErrWrongTokenType = errors.New("wrong token type")
)

const minSecretLength = 16

// Config holds the codec settings. Secret is shared by every service that
// verifies tokens locally.
type Config struct {
	Secret     []byte
	Issuer     string
	Audience   string
	Leeway     time.Duration
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// Now overrides the clock for issuing and validating. Nil means time.Now.
	Now func() time.Time
}

// Manager signs and decodes tokens. It is immutable after NewManager and safe
// for concurrent use.
type Manager struct {
	config Config
	parser *jwt.Parser
}

// Pair is the result of a login or a refresh rotation.
type Pair struct {
	Access           string
	Refresh          string
	SessionID        string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// NewManager validates cfg and builds a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Secret) < minSecretLength {
		return nil, fmt.Errorf("jwt secret must be at least %d bytes", minSecretLength)
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.RefreshTTL < cfg.AccessTTL {
		return nil, errors.New("refresh TTL must not be shorter than access TTL")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(cfg.Now),
	}
	if cfg.Leeway > 0 {
		options = append(options, jwt.WithLeeway(cfg.Leeway))
	}
	if cfg.Issuer != "" {
		options = append(options, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		options = append(options, jwt.WithAudience(cfg.Audience))
	}

	return &Manager{config: cfg, parser: jwt.NewParser(options...)}, nil
}

// AccessTTL returns the configured access-token lifetime.
func (m *Manager) AccessTTL() time.Duration { return m.config.AccessTTL }

// RefreshTTL returns the configured refresh-token lifetime.
func (m *Manager) RefreshTTL() time.Duration { return m.config.RefreshTTL }

// Issue signs a standalone access token with exp = now + ttl. A non-positive
// ttl yields a token that is already expired.
func (m *Manager) Issue(subject string, role Role, capabilities []string, ttl time.Duration) (string, error) {
	token, _, err := m.issue(TokenAccess, uuid.NewString(), subject, role, capabilities, ttl)
	return token, err
}

// IssuePair signs an access and a refresh token that share one session id.
func (m *Manager) IssuePair(subject string, role Role, capabilities []string) (Pair, error) {
	sid := uuid.NewString()

	access, accessExp, err := m.issue(TokenAccess, sid, subject, role, capabilities, m.config.AccessTTL)
	if err != nil {
		return Pair{}, err
	}
	refresh, refreshExp, err := m.issue(TokenRefresh, sid, subject, role, capabilities, m.config.RefreshTTL)
	if err != nil {
		return Pair{}, err
	}

	return Pair{
		Access:           access,
		Refresh:          refresh,
		SessionID:        sid,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func (m *Manager) issue(kind TokenType, sid, subject string, role Role, capabilities []string, ttl time.Duration) (string, time.Time, error) {
	if subject == "" || role == "" {
		return "", time.Time{}, ErrMissingClaim
	}
	if !role.Valid() {
		return "", time.Time{}, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	if capabilities == nil {
		capabilities = []string{}
	}

	now := m.config.Now()
	expiresAt := jwt.NewNumericDate(now.Add(ttl))
	claims := Claims{
		UserID:        subject,
		Role:          role,
		Subscriptions: capabilities,
		SessionID:     sid,
		TokenType:     kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: expiresAt,
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    m.config.Issuer,
		},
	}
	if m.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{m.config.Audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.config.Secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt.Time, nil
}

// Decode verifies tokenStr and returns its claims. It returns ErrExpired for a
// correctly signed token past its expiry and ErrMalformed for anything else.
func (m *Manager) Decode(tokenStr string) (*Claims, error) {
	token, err := m.parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return m.config.Secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", ErrExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrMalformed
	}
	if claims.UserID == "" || !claims.Role.Valid() {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, ErrMissingClaim)
	}

	return claims, nil
}

// DecodeAs decodes tokenStr and additionally requires it to be of kind.
func (m *Manager) DecodeAs(tokenStr string, kind TokenType) (*Claims, error) {
	claims, err := m.Decode(tokenStr)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != kind {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, ErrWrongTokenType)
	}
	return claims, nil
}

// Remaining returns how long claims stay valid from now. It is never negative.
func (m *Manager) Remaining(claims *Claims) time.Duration {
	if claims == nil || claims.ExpiresAt == nil {
		return 0
	}
	left := claims.ExpiresAt.Sub(m.config.Now())
	if left < 0 {
		return 0
	}
	return left
}

// Until returns how long remains until t on the codec's clock, floored at zero.
func (m *Manager) Until(t time.Time) time.Duration {
	left := t.Sub(m.config.Now())
	if left < 0 {
		return 0
	}
	return left
}
