package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher provides one-way password hashing and verification.
type PasswordHasher interface {
	// Hash produces a salted digest of the password.
	Hash(password string) (string, error)

	// Verify checks if the password matches the digest.
	// Returns (true, nil) on match, (false, nil) on mismatch, or an error
	// coded AUTH_CORRUPT_HASH when the digest itself is malformed.
	Verify(hash, password string) (bool, error)

	// NeedsRehash returns true if the digest should be replaced by a fresh Hash.
	NeedsRehash(hash string) bool
}

// Argon2Params are the argon2id cost parameters.
type Argon2Params struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
	SaltLen uint32
	KeyLen  uint32
}

// DefaultArgon2Params follow the OWASP argon2id recommendation.
var DefaultArgon2Params = Argon2Params{
	Time:    3,
	Memory:  64 * 1024,
	Threads: 2,
	SaltLen: 16,
	KeyLen:  32,
}

const argon2Prefix = "$argon2id$"

// Upper bounds on cost parameters accepted from a stored digest.
const (
	maxArgon2Memory = 1024 * 1024 // KiB
	maxArgon2Time   = 10
)

// Argon2idHasher implements PasswordHasher using argon2id. Digests are
// encoded in PHC format: $argon2id$v=19$m=65536,t=3,p=2$<salt>$<hash>.
// bcrypt digests are still accepted by Verify so accounts created before the
// switch to argon2id can sign in and be upgraded.
type Argon2idHasher struct {
	params Argon2Params
	rand   io.Reader
}

// NewArgon2idHasher creates an Argon2idHasher with DefaultArgon2Params.
func NewArgon2idHasher() *Argon2idHasher {
	return NewArgon2idHasherWithParams(DefaultArgon2Params)
}

// NewArgon2idHasherWithParams creates an Argon2idHasher with custom cost parameters.
func NewArgon2idHasherWithParams(params Argon2Params) *Argon2idHasher {
	return &Argon2idHasher{params: params, rand: rand.Reader}
}

// Hash produces an argon2id digest of the password.
func (h *Argon2idHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	salt := make([]byte, h.params.SaltLen)
	if _, err := io.ReadFull(h.rand, salt); err != nil {
		return "", oops.Code(CodeHashingFailed).Wrapf(err, "generating salt")
	}

	key := argon2.IDKey([]byte(password), salt, h.params.Time, h.params.Memory, h.params.Threads, h.params.KeyLen)

	return fmt.Sprintf("%sv=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2Prefix,
		argon2.Version,
		h.params.Memory, h.params.Time, h.params.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify checks if the password matches the digest in constant time.
func (h *Argon2idHasher) Verify(hash, password string) (bool, error) {
	if isBcrypt(hash) {
		return verifyBcrypt(hash, password)
	}

	salt, key, params, err := decodePHC(hash)
	if err != nil {
		return false, err
	}

	candidate := argon2.IDKey([]byte(password), salt, params.Time, params.Memory, params.Threads, uint32(len(key)))

	return subtle.ConstantTimeCompare(key, candidate) == 1, nil
}

// NeedsRehash returns true for digests that are not argon2id with the
// hasher's current parameters.
func (h *Argon2idHasher) NeedsRehash(hash string) bool {
	if !strings.HasPrefix(hash, argon2Prefix) {
		return true
	}
	_, _, params, err := decodePHC(hash)
	if err != nil {
		return true
	}
	return params.Time != h.params.Time || params.Memory != h.params.Memory || params.Threads != h.params.Threads
}

func isBcrypt(hash string) bool {
	return strings.HasPrefix(hash, "$2a$") || strings.HasPrefix(hash, "$2b$") || strings.HasPrefix(hash, "$2y$")
}

func verifyBcrypt(hash, password string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, oops.Code(CodeCorruptHash).Wrapf(err, "invalid bcrypt hash")
	}
}

// decodePHC parses an argon2id PHC string into its components.
func decodePHC(encoded string) (salt, key []byte, params Argon2Params, err error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 {
		return nil, nil, params, oops.Code(CodeCorruptHash).Errorf("invalid hash format")
	}

	if parts[1] != "argon2id" {
		return nil, nil, params, oops.Code(CodeCorruptHash).Errorf("unsupported hash algorithm: %s", parts[1])
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return nil, nil, params, oops.Code(CodeCorruptHash).Wrapf(err, "parsing version")
	}
	if version != argon2.Version {
		return nil, nil, params, oops.Code(CodeCorruptHash).Errorf("unsupported argon2 version %d", version)
	}

	var threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &params.Memory, &params.Time, &threads); err != nil {
		return nil, nil, params, oops.Code(CodeCorruptHash).Wrapf(err, "parsing parameters")
	}
	if threads == 0 || threads > 255 {
		return nil, nil, params, oops.Code(CodeCorruptHash).Errorf("threads value %d out of range", threads)
	}
	params.Threads = uint8(threads)
	if params.Time == 0 || params.Memory == 0 {
		return nil, nil, params, oops.Code(CodeCorruptHash).Errorf("zero cost parameter")
	}
	if params.Memory > maxArgon2Memory || params.Time > maxArgon2Time {
		return nil, nil, params, oops.Code(CodeCorruptHash).Errorf("cost parameters m=%d,t=%d out of range", params.Memory, params.Time)
	}

	salt, err = base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, nil, params, oops.Code(CodeCorruptHash).Wrapf(err, "decoding salt")
	}

	key, err = base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return nil, nil, params, oops.Code(CodeCorruptHash).Wrapf(err, "decoding hash")
	}
	if len(key) == 0 || len(key) > 1024 {
		return nil, nil, params, oops.Code(CodeCorruptHash).Errorf("invalid hash key length: %d", len(key))
	}

	return salt, key, params, nil
}
