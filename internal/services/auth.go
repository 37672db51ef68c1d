package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/planthub/authapi/internal/auth"
	"github.com/planthub/authapi/internal/events"
	"github.com/planthub/authapi/internal/store"
	"github.com/planthub/authapi/types"
)

// ErrInvalidCredentials is returned by Login for an unknown email and for a
// wrong password alike.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrInvalidToken is returned by Principal when the access token does not
// verify.
var ErrInvalidToken = errors.New("invalid token")

// TokenIssuer signs and verifies session tokens.
type TokenIssuer interface {
	IssueAccessToken(userID string) (string, error)
	IssueRefreshToken(userID string) (string, error)
	Verify(token string, kind auth.TokenKind) (auth.Subject, bool)
}

// Session is the result of a successful login.
type Session struct {
	User         types.User
	AccessToken  string
	RefreshToken string
}

// AuthService verifies credentials and issues session tokens.
type AuthService struct {
	repo      UserRepository
	hasher    auth.PasswordHasher
	tokens    TokenIssuer
	events    *events.Publisher
	logger    *slog.Logger
	dummyHash string
}

func NewAuthService(repo UserRepository, hasher auth.PasswordHasher, tokens TokenIssuer, publisher *events.Publisher, logger *slog.Logger) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	// Verified against when the email is unknown so both failure paths cost
	// one hash verification.
	dummyHash, err := hasher.Hash("planthub-unknown-account")
	if err != nil {
		logger.Warn("could not prepare dummy password hash", "error", err)
	}
	return &AuthService{
		repo:      repo,
		hasher:    hasher,
		tokens:    tokens,
		events:    publisher,
		logger:    logger,
		dummyHash: dummyHash,
	}
}

// Login checks email and password and issues an access and a refresh token.
func (s *AuthService) Login(ctx context.Context, email, password string) (Session, error) {
	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			if s.dummyHash != "" {
				_, _ = s.hasher.Verify(s.dummyHash, password)
			}
			s.events.EmitContext(ctx, events.Event{Type: events.LoginFailed})
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, fmt.Errorf("find user: %w", err)
	}

	ok, err := s.hasher.Verify(user.PasswordHash, password)
	if err != nil {
		return Session{}, fmt.Errorf("verify password of user %s: %w", user.ID, err)
	}
	if !ok {
		s.events.EmitContext(ctx, events.Event{Type: events.LoginFailed, UserID: user.ID})
		return Session{}, ErrInvalidCredentials
	}

	accessToken, err := s.tokens.IssueAccessToken(user.ID)
	if err != nil {
		return Session{}, fmt.Errorf("issue access token: %w", err)
	}
	refreshToken, err := s.tokens.IssueRefreshToken(user.ID)
	if err != nil {
		return Session{}, fmt.Errorf("issue refresh token: %w", err)
	}

	s.upgradeHash(ctx, user, password)
	s.events.EmitContext(ctx, events.Event{Type: events.LoginSucceeded, UserID: user.ID})

	return Session{User: user, AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// Principal resolves an access token to the account it was issued for.
// It returns ErrInvalidToken when the token does not verify and
// store.ErrNotFound when the subject no longer exists.
func (s *AuthService) Principal(ctx context.Context, accessToken string) (types.Principal, error) {
	subject, ok := s.tokens.Verify(accessToken, auth.AccessToken)
	if !ok {
		return types.Principal{}, ErrInvalidToken
	}
	user, err := s.repo.GetByID(ctx, subject.UserID)
	if err != nil {
		return types.Principal{}, err
	}
	return user.Principal(), nil
}

// Logout records the end of a session. Cookies are cleared by the caller.
func (s *AuthService) Logout(ctx context.Context, userID string) {
	s.events.EmitContext(ctx, events.Event{Type: events.Logout, UserID: userID})
}

// upgradeHash replaces legacy or outdated digests after a successful login.
// Failure leaves the old digest in place.
func (s *AuthService) upgradeHash(ctx context.Context, user types.User, password string) {
	if !s.hasher.NeedsRehash(user.PasswordHash) {
		return
	}
	hashed, err := s.hasher.Hash(password)
	if err != nil {
		s.logger.WarnContext(ctx, "password rehash failed", "user_id", user.ID, "error", err)
		return
	}
	if err := s.repo.UpdatePassword(ctx, user.ID, hashed); err != nil {
		s.logger.WarnContext(ctx, "storing upgraded password hash failed", "user_id", user.ID, "error", err)
		return
	}
	s.logger.InfoContext(ctx, "upgraded password hash", "user_id", user.ID)
}
