package object

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strconv"
)

// HashSize is the length in bytes of a raw git object id.
const HashSize = sha1.Size

// HashFromBytes renders a raw 20-byte object id as a Hash.
func HashFromBytes(raw []byte) (Hash, error) {
	if len(raw) != HashSize {
		return "", fmt.Errorf("hash from bytes: got %d bytes, want %d", len(raw), HashSize)
	}
	return Hash(hex.EncodeToString(raw)), nil
}

// ParseHash validates a 40-character lowercase hex object id.
func ParseHash(s string) (Hash, error) {
	if len(s) != 2*HashSize {
		return "", fmt.Errorf("parse hash %q: length %d, want %d", s, len(s), 2*HashSize)
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return "", fmt.Errorf("parse hash %q: invalid character %q", s, c)
		}
	}
	return Hash(s), nil
}

// Bytes returns the raw 20-byte form of h.
func (h Hash) Bytes() ([]byte, error) {
	raw, err := hex.DecodeString(string(h))
	if err != nil {
		return nil, fmt.Errorf("hash bytes %q: %w", string(h), err)
	}
	if len(raw) != HashSize {
		return nil, fmt.Errorf("hash bytes %q: got %d bytes, want %d", string(h), len(raw), HashSize)
	}
	return raw, nil
}

// envelope returns the loose object header "type len\0".
func envelope(objType ObjectType, size int) []byte {
	buf := make([]byte, 0, len(objType)+24)
	buf = append(buf, objType...)
	buf = append(buf, ' ')
	buf = strconv.AppendInt(buf, int64(size), 10)
	return append(buf, 0)
}

// HashObject computes the SHA-1 of the envelope "type len\0content", the
// git object id. Stored objects are never re-hashed; this is used by
// producers that need to name objects they decoded themselves.
func HashObject(objType ObjectType, data []byte) Hash {
	h := sha1.New()
	h.Write(envelope(objType, len(data)))
	h.Write(data)
	return Hash(hex.EncodeToString(h.Sum(nil)))
}
