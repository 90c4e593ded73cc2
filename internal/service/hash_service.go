package service

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters (RFC 9106 second recommended option).
const (
	argon2Time    = 1
	argon2Memory  = 64 * 1024 // 64MB
	argon2Threads = 4
	argon2KeyLen  = 32
	argon2SaltLen = 16
)

// Argon2HashService implements ports.HashService with Argon2id in the PHC
// string format, so the cost parameters travel with each stored hash and can
// be raised later without invalidating existing credentials.
type Argon2HashService struct{}

func NewArgon2HashService() *Argon2HashService {
	return &Argon2HashService{}
}

// Hash derives an Argon2id hash with a fresh random salt and encodes it as
// $argon2id$v=19$m=65536,t=1,p=4$<salt>$<hash>.
func (s *Argon2HashService) Hash(password string) (string, error) {
	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}

	key := argon2.IDKey([]byte(password), salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)

	encoded := fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		argon2Memory, argon2Time, argon2Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	)
	return encoded, nil
}

// Verify re-derives the key using the parameters embedded in encoded and
// compares in constant time.
func (s *Argon2HashService) Verify(password string, encoded string) (bool, error) {
	ph, err := parsePHCHash(encoded)
	if err != nil {
		return false, err
	}

	candidate := argon2.IDKey([]byte(password), ph.salt, ph.time, ph.memory, ph.threads, uint32(len(ph.key)))

	return subtle.ConstantTimeCompare(ph.key, candidate) == 1, nil
}

type phcHash struct {
	salt    []byte
	key     []byte
	memory  uint32
	time    uint32
	threads uint8
}

func parsePHCHash(encoded string) (phcHash, error) {
	var ph phcHash

	parts := strings.Split(encoded, "$")
	if len(parts) != 6 {
		return ph, fmt.Errorf("malformed argon2 hash: %d segments", len(parts))
	}
	if parts[1] != "argon2id" {
		return ph, fmt.Errorf("unsupported hash algorithm %q", parts[1])
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return ph, fmt.Errorf("parsing argon2 version: %w", err)
	}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &ph.memory, &ph.time, &ph.threads); err != nil {
		return ph, fmt.Errorf("parsing argon2 cost parameters: %w", err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return ph, fmt.Errorf("decoding salt: %w", err)
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return ph, fmt.Errorf("decoding key: %w", err)
	}

	ph.salt = salt
	ph.key = key
	return ph, nil
}
