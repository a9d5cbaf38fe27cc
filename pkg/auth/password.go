package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Password validation errors. Hash and Verify both enforce the same input
// bounds so a too-long password fails fast instead of burning CPU.
var (
	ErrPasswordEmpty   = errors.New("auth: password cannot be empty")
	ErrPasswordTooLong = fmt.Errorf("auth: password must not be more than %d characters", MaxPasswordLength)
	ErrInvalidHash     = errors.New("auth: invalid password hash format")
)

// MaxPasswordLength bounds the worst-case hashing cost per request.
const MaxPasswordLength = 64

const (
	argonMemory      uint32 = 19456
	argonTime        uint32 = 2
	argonParallelism uint8  = 1
	argonSaltLength  uint32 = 16
	argonKeyLength   uint32 = 32

	argonAlgorithm = "argon2id"
)

// Hasher derives and verifies Argon2id password digests in PHC string
// format. The salt is regenerated on every Hash call, so hashing the same
// password twice yields different digests.
type Hasher struct {
	memory      uint32
	time        uint32
	parallelism uint8
	saltLength  uint32
	keyLength   uint32
}

// NewHasher returns a Hasher with the production cost parameters.
func NewHasher() *Hasher {
	return &Hasher{
		memory:      argonMemory,
		time:        argonTime,
		parallelism: argonParallelism,
		saltLength:  argonSaltLength,
		keyLength:   argonKeyLength,
	}
}

// Hash derives a salted digest of password and encodes it as a PHC string
// ($argon2id$v=19$m=...,t=...,p=...$salt$hash).
func (h *Hasher) Hash(password string) (string, error) {
	if err := checkPassword(password); err != nil {
		return "", err
	}

	salt := make([]byte, h.saltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	key := argon2.IDKey([]byte(password), salt, h.time, h.memory, h.parallelism, h.keyLength)

	return fmt.Sprintf(
		"$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argonAlgorithm,
		argon2.Version,
		h.memory,
		h.time,
		h.parallelism,
		base64.StdEncoding.EncodeToString(salt),
		base64.StdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether password matches the stored digest. The comparison
// is constant-time. Input bounds are checked before any hashing work.
func (h *Hasher) Verify(password, encodedHash string) (bool, error) {
	if err := checkPassword(password); err != nil {
		return false, err
	}

	parsed, err := parsePHC(encodedHash)
	if err != nil {
		return false, err
	}

	computed := argon2.IDKey([]byte(password), parsed.salt, parsed.time, parsed.memory, parsed.parallelism, uint32(len(parsed.key)))

	return subtle.ConstantTimeCompare(computed, parsed.key) == 1, nil
}

func checkPassword(password string) error {
	if password == "" {
		return ErrPasswordEmpty
	}
	if len(password) > MaxPasswordLength {
		return ErrPasswordTooLong
	}
	return nil
}

type phcHash struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

func parsePHC(encodedHash string) (*phcHash, error) {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[0] != "" {
		return nil, ErrInvalidHash
	}
	if parts[1] != argonAlgorithm {
		return nil, ErrInvalidHash
	}

	version, err := strconv.Atoi(strings.TrimPrefix(parts[2], "v="))
	if err != nil || !strings.HasPrefix(parts[2], "v=") || version != argon2.Version {
		return nil, ErrInvalidHash
	}

	var parsed phcHash
	for _, pair := range strings.Split(parts[3], ",") {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			return nil, ErrInvalidHash
		}
		switch kv[0] {
		case "m":
			v, err := strconv.ParseUint(kv[1], 10, 32)
			if err != nil {
				return nil, ErrInvalidHash
			}
			parsed.memory = uint32(v)
		case "t":
			v, err := strconv.ParseUint(kv[1], 10, 32)
			if err != nil {
				return nil, ErrInvalidHash
			}
			parsed.time = uint32(v)
		case "p":
			v, err := strconv.ParseUint(kv[1], 10, 8)
			if err != nil {
				return nil, ErrInvalidHash
			}
			parsed.parallelism = uint8(v)
		default:
			return nil, ErrInvalidHash
		}
	}
	if parsed.memory == 0 || parsed.time == 0 || parsed.parallelism == 0 {
		return nil, ErrInvalidHash
	}

	parsed.salt, err = base64.StdEncoding.DecodeString(parts[4])
	if err != nil || len(parsed.salt) == 0 {
		return nil, ErrInvalidHash
	}
	parsed.key, err = base64.StdEncoding.DecodeString(parts[5])
	if err != nil || len(parsed.key) == 0 {
		return nil, ErrInvalidHash
	}

	return &parsed, nil
}
