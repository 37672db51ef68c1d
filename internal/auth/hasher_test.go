package auth_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/planthub/authapi/internal/auth"
)

// testParams keep argon2id cheap enough for unit tests.
var testParams = auth.Argon2Params{Time: 1, Memory: 1024, Threads: 1, SaltLen: 16, KeyLen: 32}

func TestHashPassword(t *testing.T) {
	hasher := auth.NewArgon2idHasherWithParams(testParams)

	t.Run("produces PHC argon2id digest", func(t *testing.T) {
		hash, err := hasher.Hash("Secret123")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=1024,t=1,p=1$"))
		assert.NotContains(t, hash, "Secret123")
	})

	t.Run("same password produces different digests", func(t *testing.T) {
		hash1, err := hasher.Hash("samepassword")
		require.NoError(t, err)
		hash2, err := hasher.Hash("samepassword")
		require.NoError(t, err)
		assert.NotEqual(t, hash1, hash2)
	})

	t.Run("rejects empty password", func(t *testing.T) {
		_, err := hasher.Hash("")
		require.Error(t, err)
		assert.True(t, auth.HasCode(err, auth.CodeEmptyPassword))
	})

	t.Run("default params produce default header", func(t *testing.T) {
		hash, err := auth.NewArgon2idHasher().Hash("Secret123")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=65536,t=3,p=2$"))
	})
}

func TestVerifyPassword(t *testing.T) {
	hasher := auth.NewArgon2idHasherWithParams(testParams)

	hash, err := hasher.Hash("correctpassword")
	require.NoError(t, err)

	t.Run("correct password verifies", func(t *testing.T) {
		ok, err := hasher.Verify(hash, "correctpassword")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("other passwords fail without error", func(t *testing.T) {
		for _, candidate := range []string{"wrongpassword", "", "correctpasswor", "correctpassword "} {
			ok, err := hasher.Verify(hash, candidate)
			require.NoError(t, err)
			assert.False(t, ok, candidate)
		}
	})

	t.Run("digest from different params still verifies", func(t *testing.T) {
		other := auth.NewArgon2idHasherWithParams(auth.Argon2Params{Time: 2, Memory: 2048, Threads: 1, SaltLen: 8, KeyLen: 16})
		otherHash, err := other.Hash("pw-123456")
		require.NoError(t, err)

		ok, err := hasher.Verify(otherHash, "pw-123456")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	corrupt := map[string]string{
		"not a hash":        "not-a-valid-hash",
		"wrong algorithm":   "$argon2i$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA",
		"bad version":       "$argon2id$vXX$m=65536,t=1,p=4$c2FsdA$aGFzaA",
		"unknown version":   "$argon2id$v=16$m=65536,t=1,p=4$c2FsdA$aGFzaA",
		"bad params":        "$argon2id$v=19$invalid$c2FsdA$aGFzaA",
		"threads overflow":  "$argon2id$v=19$m=65536,t=1,p=256$c2FsdA$aGFzaA",
		"bad salt encoding": "$argon2id$v=19$m=65536,t=1,p=4$!!!invalid!!!$aGFzaA",
		"bad key encoding":  "$argon2id$v=19$m=65536,t=1,p=4$c2FsdA$!!!invalid!!!",
		"empty key":         "$argon2id$v=19$m=1024,t=1,p=1$c2FsdA$",
		"truncated bcrypt":  "$2a$10$short",
		"memory overflow":   "$argon2id$v=19$m=4294967295,t=1,p=1$c2FsdA$aGFzaA",
		"memory too large":  "$argon2id$v=19$m=1048577,t=1,p=1$c2FsdA$aGFzaA",
		"time too large":    "$argon2id$v=19$m=1024,t=11,p=1$c2FsdA$aGFzaA",
		"time overflow":     "$argon2id$v=19$m=1024,t=4294967295,p=1$c2FsdA$aGFzaA",
	}
	for name, digest := range corrupt {
		t.Run("corrupt digest: "+name, func(t *testing.T) {
			ok, err := hasher.Verify(digest, "password")
			require.Error(t, err)
			assert.False(t, ok)
			assert.True(t, auth.IsCorruptHash(err), "expected corrupt hash code, got %v", err)
		})
	}
}

func TestVerifyBcryptDigest(t *testing.T) {
	hasher := auth.NewArgon2idHasherWithParams(testParams)

	legacy, err := bcrypt.GenerateFromPassword([]byte("Secret123"), bcrypt.MinCost)
	require.NoError(t, err)

	ok, err := hasher.Verify(string(legacy), "Secret123")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = hasher.Verify(string(legacy), "wrong")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.True(t, hasher.NeedsRehash(string(legacy)))
}

func TestNeedsRehash(t *testing.T) {
	hasher := auth.NewArgon2idHasherWithParams(testParams)

	current, err := hasher.Hash("password")
	require.NoError(t, err)
	assert.False(t, hasher.NeedsRehash(current))

	stronger := auth.NewArgon2idHasherWithParams(auth.Argon2Params{Time: 2, Memory: 1024, Threads: 1, SaltLen: 16, KeyLen: 32})
	assert.True(t, stronger.NeedsRehash(current))
	assert.True(t, hasher.NeedsRehash("garbage"))
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy exhausted") }

func TestHashEntropyFailure(t *testing.T) {
	hasher := auth.NewArgon2idHasherWithParams(testParams)
	auth.SetRandReader(hasher, failingReader{})

	_, err := hasher.Hash("password")
	require.Error(t, err)
	assert.True(t, auth.HasCode(err, auth.CodeHashingFailed))
}
