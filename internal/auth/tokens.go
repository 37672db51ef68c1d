package auth

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/samber/oops"
)

// MinSecretLength is the minimum length, in bytes, of a signing secret.
const MinSecretLength = 32

// TokenKind selects which secret and lifetime a token uses.
type TokenKind int

const (
	AccessToken TokenKind = iota
	RefreshToken
)

func (k TokenKind) String() string {
	switch k {
	case AccessToken:
		return "access"
	case RefreshToken:
		return "refresh"
	default:
		return "unknown"
	}
}

// TokenConfig configures a TokenService.
type TokenConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration

	// Now overrides the clock used for issuing and verifying. Defaults to
	// time.Now.
	Now func() time.Time
}

// Subject is the verified content of a session token.
type Subject struct {
	UserID    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Claims is the payload of a session token.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"userId"`
}

type tokenKey struct {
	secret []byte
	ttl    time.Duration
}

// TokenService issues and verifies HS256 session tokens. It holds no
// mutable state after construction and is safe for concurrent use.
type TokenService struct {
	access  tokenKey
	refresh tokenKey
	now     func() time.Time
}

// Validate checks the secret and lifetime invariants every TokenService
// relies on. Errors carry CodeWeakSecret.
func (cfg TokenConfig) Validate() error {
	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" {
		return oops.Code(CodeWeakSecret).Errorf("access and refresh token secrets are required")
	}
	if len(cfg.AccessSecret) < MinSecretLength {
		return oops.Code(CodeWeakSecret).Errorf("access token secret too short (minimum %d bytes)", MinSecretLength)
	}
	if len(cfg.RefreshSecret) < MinSecretLength {
		return oops.Code(CodeWeakSecret).Errorf("refresh token secret too short (minimum %d bytes)", MinSecretLength)
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		return oops.Code(CodeWeakSecret).Errorf("access and refresh token secrets must differ")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return oops.Code(CodeWeakSecret).Errorf("token lifetimes must be positive")
	}
	if cfg.AccessTTL >= cfg.RefreshTTL {
		return oops.Code(CodeWeakSecret).Errorf("access token lifetime must be shorter than refresh token lifetime")
	}
	return nil
}

// NewTokenService validates cfg and builds a TokenService. A returned error
// means the process must not serve traffic.
func NewTokenService(cfg TokenConfig) (*TokenService, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &TokenService{
		access:  tokenKey{secret: []byte(cfg.AccessSecret), ttl: cfg.AccessTTL},
		refresh: tokenKey{secret: []byte(cfg.RefreshSecret), ttl: cfg.RefreshTTL},
		now:     now,
	}, nil
}

// IssueAccessToken signs a short-lived token for userID.
func (s *TokenService) IssueAccessToken(userID string) (string, error) {
	return s.issue(userID, s.access)
}

// IssueRefreshToken signs a long-lived token for userID.
func (s *TokenService) IssueRefreshToken(userID string) (string, error) {
	return s.issue(userID, s.refresh)
}

// TTL returns the configured lifetime of kind.
func (s *TokenService) TTL(kind TokenKind) time.Duration {
	return s.key(kind).ttl
}

// Verify validates the signature and expiry of tokenString against the
// secret for kind. Any failure yields ok == false; it never returns an error
// so callers treat an invalid token exactly like a missing one.
func (s *TokenService) Verify(tokenString string, kind TokenKind) (Subject, bool) {
	if strings.TrimSpace(tokenString) == "" {
		return Subject{}, false
	}
	key := s.key(kind)
	if key.secret == nil {
		return Subject{}, false
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
		return key.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid {
		return Subject{}, false
	}

	userID := strings.TrimSpace(claims.UserID)
	if userID == "" || (claims.Subject != "" && claims.Subject != userID) {
		return Subject{}, false
	}

	subject := Subject{UserID: userID, ExpiresAt: claims.ExpiresAt.Time}
	if claims.IssuedAt != nil {
		subject.IssuedAt = claims.IssuedAt.Time
	}
	return subject, true
}

func (s *TokenService) key(kind TokenKind) tokenKey {
	switch kind {
	case AccessToken:
		return s.access
	case RefreshToken:
		return s.refresh
	default:
		return tokenKey{}
	}
}

func (s *TokenService) issue(userID string, key tokenKey) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", oops.Code(CodeSigningFailed).Errorf("subject is required")
	}

	now := s.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(key.ttl)),
		},
		UserID: userID,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(key.secret)
	if err != nil {
		return "", oops.Code(CodeSigningFailed).Wrapf(err, "signing token")
	}
	return signed, nil
}
