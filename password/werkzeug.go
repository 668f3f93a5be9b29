package password

import (
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"hash"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/crypto/scrypt"
)

// Werkzeug hashes look like "<method>$<salt>$<hex digest>" where method is
// "pbkdf2:<hash>:<iterations>" or "scrypt:<n>:<r>:<p>". The salt is used as
// its literal ASCII bytes.

func isWerkzeug(encoded string) bool {
	return strings.HasPrefix(encoded, "pbkdf2:") || strings.HasPrefix(encoded, "scrypt:")
}

func verifyWerkzeug(password, encoded string) (bool, error) {
	method, rest, ok := strings.Cut(encoded, "$")
	if !ok {
		return false, ErrUnsupportedHash
	}
	salt, digestHex, ok := strings.Cut(rest, "$")
	if !ok || salt == "" {
		return false, ErrUnsupportedHash
	}
	want, err := hex.DecodeString(digestHex)
	if err != nil || len(want) == 0 {
		return false, fmt.Errorf("%w: bad digest", ErrUnsupportedHash)
	}

	fields := strings.Split(method, ":")
	var got []byte
	switch fields[0] {
	case "pbkdf2":
		got, err = werkzeugPBKDF2(password, salt, fields[1:], len(want))
	case "scrypt":
		got, err = werkzeugScrypt(password, salt, fields[1:], len(want))
	default:
		return false, ErrUnsupportedHash
	}
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}

func werkzeugPBKDF2(password, salt string, fields []string, keyLen int) ([]byte, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: missing pbkdf2 hash name", ErrUnsupportedHash)
	}
	var newHash func() hash.Hash
	switch fields[0] {
	case "sha256":
		newHash = sha256.New
	case "sha512":
		newHash = sha512.New
	case "sha1":
		newHash = sha1.New
	default:
		return nil, fmt.Errorf("%w: pbkdf2 hash %q", ErrUnsupportedHash, fields[0])
	}

	iterations := 260000
	if len(fields) > 1 {
		n, err := strconv.Atoi(fields[1])
		if err != nil || n < 1 {
			return nil, fmt.Errorf("%w: bad pbkdf2 iterations", ErrUnsupportedHash)
		}
		iterations = n
	}
	return pbkdf2.Key([]byte(password), []byte(salt), iterations, keyLen, newHash), nil
}

func werkzeugScrypt(password, salt string, fields []string, keyLen int) ([]byte, error) {
	params := []int{32768, 8, 1}
	for i := 0; i < len(fields) && i < len(params); i++ {
		n, err := strconv.Atoi(fields[i])
		if err != nil || n < 1 {
			return nil, fmt.Errorf("%w: bad scrypt parameter", ErrUnsupportedHash)
		}
		params[i] = n
	}
	key, err := scrypt.Key([]byte(password), []byte(salt), params[0], params[1], params[2], keyLen)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedHash, err)
	}
	return key, nil
}
