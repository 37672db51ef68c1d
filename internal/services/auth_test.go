package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/planthub/authapi/internal/auth"
	"github.com/planthub/authapi/internal/services"
	"github.com/planthub/authapi/internal/store"
	"github.com/planthub/authapi/types"
)

type authFixture struct {
	svc    *services.AuthService
	users  *services.UserService
	repo   *store.MemoryUserRepository
	tokens *auth.TokenService
}

func newAuthFixture(t *testing.T) authFixture {
	t.Helper()
	repo := store.NewMemoryUserRepository()
	tokens := testTokens(t)
	return authFixture{
		svc:    services.NewAuthService(repo, testHasher(), tokens, nil, quietLogger()),
		users:  services.NewUserService(repo, testHasher(), nil),
		repo:   repo,
		tokens: tokens,
	}
}

func TestLoginSucceeds(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)

	user, err := f.users.Create(ctx, services.NewUser{Email: "a@x.com", Password: "Secret123"})
	require.NoError(t, err)

	session, err := f.svc.Login(ctx, "a@x.com", "Secret123")
	require.NoError(t, err)
	assert.Equal(t, user.ID, session.User.ID)

	subject, ok := f.tokens.Verify(session.AccessToken, auth.AccessToken)
	require.True(t, ok)
	assert.Equal(t, user.ID, subject.UserID)

	subject, ok = f.tokens.Verify(session.RefreshToken, auth.RefreshToken)
	require.True(t, ok)
	assert.Equal(t, user.ID, subject.UserID)
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)

	_, err := f.users.Create(ctx, services.NewUser{Email: "a@x.com", Password: "Secret123"})
	require.NoError(t, err)

	_, unknownErr := f.svc.Login(ctx, "nobody@x.com", "Secret123")
	_, wrongErr := f.svc.Login(ctx, "a@x.com", "wrong")

	assert.ErrorIs(t, unknownErr, services.ErrInvalidCredentials)
	assert.ErrorIs(t, wrongErr, services.ErrInvalidCredentials)
	assert.Equal(t, unknownErr.Error(), wrongErr.Error())

	_, err = f.svc.Login(ctx, "A@x.com", "Secret123")
	assert.ErrorIs(t, err, services.ErrInvalidCredentials, "emails are case-sensitive")
}

func TestLoginCorruptDigestIsInternal(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)

	user, err := f.users.Create(ctx, services.NewUser{Email: "a@x.com", Password: "Secret123"})
	require.NoError(t, err)
	require.NoError(t, f.repo.UpdatePassword(ctx, user.ID, "$argon2id$broken"))

	_, err = f.svc.Login(ctx, "a@x.com", "Secret123")
	require.Error(t, err)
	assert.NotErrorIs(t, err, services.ErrInvalidCredentials)
	assert.True(t, auth.IsCorruptHash(err))
}

func TestLoginUpgradesLegacyDigest(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)

	legacy, err := bcrypt.GenerateFromPassword([]byte("Secret123"), bcrypt.MinCost)
	require.NoError(t, err)
	user, err := f.repo.Create(ctx, types.User{Email: "old@x.com", Role: types.RoleUser, PasswordHash: string(legacy)})
	require.NoError(t, err)

	_, err = f.svc.Login(ctx, "old@x.com", "Secret123")
	require.NoError(t, err)

	stored, err := f.repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Contains(t, stored.PasswordHash, "$argon2id$")

	_, err = f.svc.Login(ctx, "old@x.com", "Secret123")
	require.NoError(t, err, "upgraded digest still verifies")
}

type failingRepo struct {
	*store.MemoryUserRepository
}

func (failingRepo) GetByEmail(context.Context, string) (types.User, error) {
	return types.User{}, errors.New("database unavailable")
}

func TestLoginDirectoryFailureIsNotInvalidCredentials(t *testing.T) {
	repo := failingRepo{store.NewMemoryUserRepository()}
	svc := services.NewAuthService(repo, testHasher(), testTokens(t), nil, quietLogger())

	_, err := svc.Login(context.Background(), "a@x.com", "Secret123")
	require.Error(t, err)
	assert.NotErrorIs(t, err, services.ErrInvalidCredentials)
}
