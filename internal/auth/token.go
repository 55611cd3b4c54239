package auth

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/agristack/agristack-auth/internal/user/entity"
)

// PurposeMagicLink tags magic-link tokens so a session token can never be
// replayed through the magic-link verify phase or vice versa.
const PurposeMagicLink = "magiclink"

// TokenConfig holds the signing material and validity windows. The secret is
// injected at startup; there is deliberately no baked-in fallback value.
type TokenConfig struct {
	Secret       []byte
	Issuer       string
	SessionTTL   time.Duration
	MagicLinkTTL time.Duration
}

// TokenConfigFromEnv reads token configuration from the environment.
// JWT_SECRET must be set; startup fails otherwise.
func TokenConfigFromEnv() (TokenConfig, error) {
	secret := strings.TrimSpace(os.Getenv("JWT_SECRET"))
	if secret == "" {
		return TokenConfig{}, errors.New("JWT_SECRET is not set")
	}
	return TokenConfig{
		Secret:       []byte(secret),
		Issuer:       os.Getenv("JWT_ISSUER"),
		SessionTTL:   24 * time.Hour,
		MagicLinkTTL: 15 * time.Minute,
	}, nil
}

// SessionClaims is the payload of a session token.
type SessionClaims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// MagicLinkClaims is the payload of a magic-link token. Email binding is
// checked by the dispatcher at verify time, not just the signature.
type MagicLinkClaims struct {
	Email   string `json:"email"`
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

// TokenService signs and verifies the HS256 bearer tokens used for sessions
// and magic links. Tokens are never persisted; validity is defined entirely
// by signature and expiry.
type TokenService struct {
	cfg TokenConfig
	now func() time.Time
}

func NewTokenService(cfg TokenConfig) (*TokenService, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("token secret is required")
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 24 * time.Hour
	}
	if cfg.MagicLinkTTL <= 0 {
		cfg.MagicLinkTTL = 15 * time.Minute
	}
	return &TokenService{cfg: cfg, now: time.Now}, nil
}

// IssueSession mints a 24h session token asserting {sub, username, role}.
func (s *TokenService) IssueSession(u *entity.User) (string, error) {
	now := s.now()
	claims := SessionClaims{
		Username: u.Username,
		Role:     u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			Issuer:    s.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.SessionTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.cfg.Secret)
}

// IssueMagicLink mints a 15m token binding the given email to the magic-link
// purpose. The email is stored lowercase so verification is insensitive to
// caller casing.
func (s *TokenService) IssueMagicLink(email string) (string, error) {
	now := s.now()
	claims := MagicLinkClaims{
		Email:   strings.ToLower(strings.TrimSpace(email)),
		Purpose: PurposeMagicLink,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.MagicLinkTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.cfg.Secret)
}

// VerifySession validates a session token and returns its claims.
// Expired tokens map to ErrTokenExpired, everything else to ErrInvalidToken.
func (s *TokenService) VerifySession(token string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	if err := s.parse(token, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// VerifyMagicLink validates a magic-link token, including the purpose tag.
func (s *TokenService) VerifyMagicLink(token string) (*MagicLinkClaims, error) {
	claims := &MagicLinkClaims{}
	if err := s.parse(token, claims); err != nil {
		return nil, err
	}
	if claims.Purpose != PurposeMagicLink {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *TokenService) parse(token string, claims jwt.Claims) error {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	}
	if s.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.cfg.Issuer))
	}
	parsed, err := jwt.NewParser(opts...).ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return s.cfg.Secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrTokenExpired
		}
		return ErrInvalidToken
	}
	if !parsed.Valid {
		return ErrInvalidToken
	}
	return nil
}
