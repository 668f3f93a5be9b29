package sessionguard

import "time"

// SecurityReport summarizes the security-relevant posture of a built engine.
// It never includes the signing secret.
type SecurityReport struct {
	ProductionMode    bool
	SigningAlgorithm  string
	SecretLength      int
	AccessTTL         time.Duration
	RefreshTTL        time.Duration
	Leeway            time.Duration
	AtomicRotation    bool
	StoreRetries      int
	CacheEnabled      bool
	CacheTTL          time.Duration
	CachePeerScopes   int
	RateLimitActive   bool
	RateLimitFailOpen bool
	RateLimit         int
	RateLimitWindow   time.Duration
	Argon2            PasswordConfigReport
	AuditEnabled      bool
}

type PasswordConfigReport struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}
	c := e.config

	return SecurityReport{
		ProductionMode:    c.Security.ProductionMode,
		SigningAlgorithm:  "HS256",
		SecretLength:      len(c.JWT.Secret),
		AccessTTL:         c.JWT.AccessTTL,
		RefreshTTL:        c.JWT.RefreshTTL,
		Leeway:            c.JWT.Leeway,
		AtomicRotation:    c.Revocation.AtomicRotation,
		StoreRetries:      c.Revocation.RetryAttempts - 1,
		CacheEnabled:      c.Cache.Enabled,
		CacheTTL:          c.Cache.TTL,
		CachePeerScopes:   len(c.Cache.PeerScopes),
		RateLimitActive:   c.RateLimit.Enabled,
		RateLimitFailOpen: c.RateLimit.Enabled && c.RateLimit.FailOpen,
		RateLimit:         c.RateLimit.Limit,
		RateLimitWindow:   c.RateLimit.Window,
		Argon2: PasswordConfigReport{
			Memory:      c.Password.Memory,
			Time:        c.Password.Time,
			Parallelism: c.Password.Parallelism,
			SaltLength:  c.Password.SaltLength,
			KeyLength:   c.Password.KeyLength,
		},
		AuditEnabled: c.Audit.Enabled,
	}
}
