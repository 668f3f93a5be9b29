package password

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"io"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

const (
	argon2ID      = "argon2id"
	minMemoryKB   = 8 * 1024
	minSaltLength = 16
	minKeyLength  = 16
)

// ErrUnsupportedHash is returned for stored hashes in an unknown scheme.
var ErrUnsupportedHash = errors.New("unsupported password hash")

// Params are the Argon2id cost settings used for new hashes.
type Params struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultParams follows the OWASP baseline for Argon2id.
func DefaultParams() Params {
	return Params{Memory: 64 * 1024, Time: 3, Parallelism: 2, SaltLength: 16, KeyLength: 32}
}

func (p Params) validate() error {
	switch {
	case p.Memory < minMemoryKB:
		return errors.New("password memory must be >= 8192 KB")
	case p.Time < 1:
		return errors.New("password time must be >= 1")
	case p.Parallelism < 1:
		return errors.New("password parallelism must be >= 1")
	case p.SaltLength < minSaltLength:
		return errors.New("password salt length must be >= 16")
	case p.KeyLength < minKeyLength:
		return errors.New("password key length must be >= 16")
	}
	return nil
}

// Hasher hashes with Argon2id and verifies Argon2id, bcrypt and Werkzeug hashes. It holds no
// mutable state and is safe for concurrent use.
type Hasher struct {
	params Params
	dummy  string
}

// NewHasher validates params and builds a Hasher.
func NewHasher(params Params) (*Hasher, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	h := &Hasher{params: params}

	dummy, err := h.Hash("sessionguard-timing-equaliser")
	if err != nil {
		return nil, err
	}
	h.dummy = dummy
	return h, nil
}

// Hash returns the PHC encoding of an Argon2id hash of password. The password
// bytes are used as given, without Unicode normalisation.
func (h *Hasher) Hash(password string) (string, error) {
	salt := make([]byte, h.params.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}
	key := argon2.IDKey([]byte(password), salt, h.params.Time, h.params.Memory, h.params.Parallelism, h.params.KeyLength)
	return encodePHC(h.params, salt, key), nil
}

// Verify reports whether password matches encoded. A malformed or unknown
// hash is an error; a wrong password is (false, nil).
func (h *Hasher) Verify(password, encoded string) (bool, error) {
	switch {
	case strings.HasPrefix(encoded, "$"+argon2ID+"$"):
		stored, err := decodePHC(encoded)
		if err != nil {
			return false, err
		}
		computed := argon2.IDKey([]byte(password), stored.salt, stored.params.Time, stored.params.Memory, stored.params.Parallelism, stored.params.KeyLength)
		return subtle.ConstantTimeCompare(computed, stored.key) == 1, nil

	case isBcrypt(encoded):
		err := bcrypt.CompareHashAndPassword([]byte(encoded), []byte(password))
		if err == nil {
			return true, nil
		}
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		return false, err

	case isWerkzeug(encoded):
		return verifyWerkzeug(password, encoded)

	default:
		return false, ErrUnsupportedHash
	}
}

// Burn performs one verification against a fixed hash and discards the result.
// It keeps the cost of a lookup for an unknown user in line with a real check.
func (h *Hasher) Burn(password string) {
	_, _ = h.Verify(password, h.dummy)
}

// NeedsRehash reports whether encoded was produced by a legacy scheme or with
// weaker Argon2id parameters than the Hasher's.
func (h *Hasher) NeedsRehash(encoded string) (bool, error) {
	if isBcrypt(encoded) || isWerkzeug(encoded) {
		return true, nil
	}
	stored, err := decodePHC(encoded)
	if err != nil {
		return false, err
	}

	p := stored.params
	return h.params.Memory > p.Memory ||
		h.params.Time > p.Time ||
		h.params.Parallelism > p.Parallelism ||
		h.params.KeyLength != p.KeyLength, nil
}

func isBcrypt(encoded string) bool {
	for _, prefix := range []string{"$2a$", "$2b$", "$2y$"} {
		if strings.HasPrefix(encoded, prefix) {
			return true
		}
	}
	return false
}
