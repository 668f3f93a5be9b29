package password

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

var errInvalidPHC = errors.New("invalid PHC format")

type phcHash struct {
	params Params
	salt   []byte
	key    []byte
}

func encodePHC(p Params, salt, key []byte) string {
	return fmt.Sprintf(
		"$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2ID,
		argon2.Version,
		p.Memory,
		p.Time,
		p.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	)
}

// decodePHC accepts both padded and unpadded base64 segments.
func decodePHC(encoded string) (*phcHash, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return nil, errInvalidPHC
	}
	if parts[1] != argon2ID {
		return nil, fmt.Errorf("%w: unsupported algorithm %q", errInvalidPHC, parts[1])
	}

	version, err := strconv.Atoi(strings.TrimPrefix(parts[2], "v="))
	if err != nil || !strings.HasPrefix(parts[2], "v=") {
		return nil, fmt.Errorf("%w: bad version", errInvalidPHC)
	}
	if version != argon2.Version {
		return nil, fmt.Errorf("%w: unsupported argon2 version %d", errInvalidPHC, version)
	}

	params, err := decodeParams(parts[3])
	if err != nil {
		return nil, err
	}

	salt, err := decodeSegment(parts[4])
	if err != nil || len(salt) < minSaltLength {
		return nil, fmt.Errorf("%w: bad salt", errInvalidPHC)
	}
	key, err := decodeSegment(parts[5])
	if err != nil || len(key) == 0 {
		return nil, fmt.Errorf("%w: bad hash", errInvalidPHC)
	}

	params.SaltLength = uint32(len(salt))
	params.KeyLength = uint32(len(key))
	return &phcHash{params: params, salt: salt, key: key}, nil
}

func decodeSegment(s string) ([]byte, error) {
	if strings.HasSuffix(s, "=") {
		return base64.StdEncoding.DecodeString(s)
	}
	return base64.RawStdEncoding.DecodeString(s)
}

func decodeParams(part string) (Params, error) {
	var p Params
	seen := map[string]bool{}

	for _, pair := range strings.Split(part, ",") {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || seen[name] {
			return p, fmt.Errorf("%w: bad parameter %q", errInvalidPHC, pair)
		}
		seen[name] = true

		switch name {
		case "m":
			v, err := strconv.ParseUint(value, 10, 32)
			if err != nil || v < minMemoryKB {
				return p, fmt.Errorf("%w: bad memory", errInvalidPHC)
			}
			p.Memory = uint32(v)
		case "t":
			v, err := strconv.ParseUint(value, 10, 32)
			if err != nil || v < 1 {
				return p, fmt.Errorf("%w: bad time", errInvalidPHC)
			}
			p.Time = uint32(v)
		case "p":
			v, err := strconv.ParseUint(value, 10, 8)
			if err != nil || v < 1 {
				return p, fmt.Errorf("%w: bad parallelism", errInvalidPHC)
			}
			p.Parallelism = uint8(v)
		default:
			return p, fmt.Errorf("%w: unsupported parameter %q", errInvalidPHC, name)
		}
	}

	if len(seen) != 3 {
		return p, fmt.Errorf("%w: missing parameters", errInvalidPHC)
	}
	return p, nil
}
