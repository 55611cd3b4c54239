package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/agristack/agristack-auth/internal/user/entity"
	"github.com/agristack/agristack-auth/internal/user/repo"
	"github.com/agristack/agristack-auth/pkg/utilities"
)

// UserStore is the credential-store contract the dispatcher depends on.
// *repo.UserRepo is the production implementation.
type UserStore interface {
	FindByID(ctx context.Context, id string) (*entity.User, error)
	FindByUsernameOrEmail(ctx context.Context, identifier string) (*entity.User, error)
	FindByEmail(ctx context.Context, email string) (*entity.User, error)
	FindByAgristackID(ctx context.Context, agristackID string) (*entity.User, error)
	FindByAadhaar(ctx context.Context, aadhaarNumber string) (*entity.User, error)
	FindByAnyIdentifier(ctx context.Context, ids repo.IdentifierSet) (*entity.User, error)
	Create(ctx context.Context, u *entity.User) error
	BackfillSIScore(ctx context.Context) (int64, error)
}

// LoginRequest is the closed set of login methods. Each method carries its
// own typed input; the dispatcher switches exhaustively over the set.
type LoginRequest interface {
	loginMethod() string
}

// CredentialsLogin authenticates with username (or email) and password.
type CredentialsLogin struct {
	Username string
	Password string
}

// AgristackLogin authenticates by Agristack ID possession alone. This is a
// deliberately low-assurance method accepted by the product.
type AgristackLogin struct {
	AgristackID string
}

// MagicLinkVerify is the second phase of the magic-link flow; the first
// phase is Service.RequestMagicLink.
type MagicLinkVerify struct {
	Email string
	Token string
}

// AadhaarVerify is the second phase of the Aadhaar eKYC flow; the first
// phase is Service.RequestAadhaarOTP.
type AadhaarVerify struct {
	AadhaarNumber string
	OTP           string
}

func (CredentialsLogin) loginMethod() string { return "credentials" }
func (AgristackLogin) loginMethod() string   { return "agristack" }
func (MagicLinkVerify) loginMethod() string  { return "magiclink" }
func (AadhaarVerify) loginMethod() string    { return "aadhaar" }

// LoginResult is the terminal success state of any login method.
type LoginResult struct {
	Token  string
	Method string
	User   *entity.User
}

// SignupInput is the payload for account creation.
type SignupInput struct {
	Username      string
	Email         string
	Password      string
	Role          string
	AgristackID   string
	AadhaarNumber string
	PhoneNumber   string
}

// Service orchestrates the four login methods, signup, and session
// resolution. Each call is a stateless unit of work; uniqueness races are
// settled by the store's unique indexes, not by locking here.
type Service struct {
	store  UserStore
	hasher PasswordHasher
	tokens *TokenService
	otp    OTPProvider
	magic  MagicLinkSender
	logger *zap.SugaredLogger
}

func NewService(store UserStore, hasher PasswordHasher, tokens *TokenService, otp OTPProvider, magic MagicLinkSender, logger *zap.SugaredLogger) *Service {
	if hasher == nil {
		hasher = BcryptHasher{Cost: DefaultBcryptCost}
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if magic == nil {
		magic = LogMagicLinkSender{Logger: logger}
	}
	return &Service{store: store, hasher: hasher, tokens: tokens, otp: otp, magic: magic, logger: logger}
}

// Login dispatches to the method-specific flow. The type switch is the only
// dispatch point; adding a method means adding a case here.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	switch q := req.(type) {
	case CredentialsLogin:
		return s.loginCredentials(ctx, q)
	case AgristackLogin:
		return s.loginAgristack(ctx, q)
	case MagicLinkVerify:
		return s.loginMagicLink(ctx, q)
	case AadhaarVerify:
		return s.loginAadhaar(ctx, q)
	default:
		return nil, fmt.Errorf("unsupported login method %T", req)
	}
}

func (s *Service) loginCredentials(ctx context.Context, req CredentialsLogin) (*LoginResult, error) {
	if req.Username == "" {
		return nil, missingField("username")
	}
	if req.Password == "" {
		return nil, missingField("password")
	}
	u, err := s.store.FindByUsernameOrEmail(ctx, req.Username)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			// generic failure: not-found and wrong-password are
			// indistinguishable on the wire
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !u.IsActive {
		return nil, ErrAccountDeactivated
	}
	if !s.hasher.Verify(u.PasswordHash, req.Password) {
		return nil, ErrInvalidCredentials
	}
	return s.authenticated(u, "credentials")
}

func (s *Service) loginAgristack(ctx context.Context, req AgristackLogin) (*LoginResult, error) {
	if req.AgristackID == "" {
		return nil, missingField("agristackId")
	}
	u, err := s.store.FindByAgristackID(ctx, req.AgristackID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrInvalidAgristackID
		}
		return nil, err
	}
	if !u.IsActive {
		return nil, ErrAccountDeactivated
	}
	return s.authenticated(u, "agristack")
}

func (s *Service) loginMagicLink(ctx context.Context, req MagicLinkVerify) (*LoginResult, error) {
	if req.Email == "" {
		return nil, missingField("email")
	}
	if req.Token == "" {
		return nil, missingField("magicToken")
	}
	claims, err := s.tokens.VerifyMagicLink(req.Token)
	if err != nil {
		return nil, ErrInvalidMagicLink
	}
	if claims.Email != normalizeEmail(req.Email) {
		return nil, ErrInvalidMagicLink
	}
	u, err := s.store.FindByEmail(ctx, claims.Email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrNoAccountForEmail
		}
		return nil, err
	}
	if !u.IsActive {
		return nil, ErrAccountDeactivated
	}
	return s.authenticated(u, "magiclink")
}

func (s *Service) loginAadhaar(ctx context.Context, req AadhaarVerify) (*LoginResult, error) {
	if req.AadhaarNumber == "" {
		return nil, missingField("aadhaarNumber")
	}
	// format gate runs before any store or provider round-trip
	if !validOTPFormat(req.OTP) {
		return nil, ErrInvalidOTPFormat
	}
	ok, err := s.otp.Verify(ctx, req.AadhaarNumber, req.OTP)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidOTP
	}
	u, err := s.store.FindByAadhaar(ctx, req.AadhaarNumber)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrNoAccountForAadhaar
		}
		return nil, err
	}
	if !u.IsActive {
		return nil, ErrAccountDeactivated
	}
	return s.authenticated(u, "aadhaar")
}

// RequestMagicLink issues a magic-link token for the email and hands it to
// the delivery collaborator. No existence check is performed against the
// store, so the response cannot be used to enumerate accounts. The token is
// returned for dev-echo wiring only; production callers discard it.
func (s *Service) RequestMagicLink(ctx context.Context, email string) (string, error) {
	if email == "" {
		return "", missingField("email")
	}
	token, err := s.tokens.IssueMagicLink(email)
	if err != nil {
		return "", err
	}
	if err := s.magic.SendMagicLink(ctx, normalizeEmail(email), token); err != nil {
		return "", err
	}
	return token, nil
}

// RequestAadhaarOTP signals the OTP collaborator to deliver a code. Like
// the magic-link request phase, it never consults the store.
func (s *Service) RequestAadhaarOTP(ctx context.Context, aadhaarNumber string) error {
	if aadhaarNumber == "" {
		return missingField("aadhaarNumber")
	}
	return s.otp.Request(ctx, aadhaarNumber)
}

// Signup validates input, creates the identity, and issues a session token.
// The FindByAnyIdentifier pre-check gives deterministic first-collision
// reporting (username > email > agristackId > aadhaarNumber); the store's
// unique indexes remain the authoritative guard against concurrent inserts.
func (s *Service) Signup(ctx context.Context, in SignupInput) (*LoginResult, error) {
	if in.Username == "" || in.Email == "" || in.Password == "" || in.Role == "" {
		return nil, missingField("username, email, password, role")
	}
	if len(in.Password) < 6 {
		return nil, &repo.ValidationError{Field: "password", Reason: "must be at least 6 characters"}
	}
	in.Username = strings.TrimSpace(in.Username)
	in.Email = normalizeEmail(in.Email)
	in.AgristackID = strings.TrimSpace(in.AgristackID)
	in.AadhaarNumber = strings.TrimSpace(in.AadhaarNumber)
	in.PhoneNumber = strings.TrimSpace(in.PhoneNumber)

	existing, err := s.store.FindByAnyIdentifier(ctx, repo.IdentifierSet{
		Username:      in.Username,
		Email:         in.Email,
		AgristackID:   in.AgristackID,
		AadhaarNumber: in.AadhaarNumber,
	})
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		return nil, &repo.DuplicateFieldError{Field: collidingField(existing, in)}
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}
	u := &entity.User{
		ID:            utilities.NewKSUID(),
		Username:      in.Username,
		Email:         in.Email,
		PasswordHash:  hash,
		Role:          in.Role,
		AgristackID:   in.AgristackID,
		AadhaarNumber: in.AadhaarNumber,
		PhoneNumber:   in.PhoneNumber,
		SIScore:       entity.DefaultSIScore,
		IsActive:      true,
	}
	if err := s.store.Create(ctx, u); err != nil {
		return nil, err
	}
	s.logger.Infow("user created", "id", u.ID, "role", u.Role)
	return s.authenticated(u, "signup")
}

// Resolve recovers the identity behind a session token. The account's
// active flag is re-checked against the store, so a deactivated account is
// rejected even with a structurally valid token.
func (s *Service) Resolve(ctx context.Context, token string) (*entity.User, error) {
	if token == "" {
		return nil, ErrMissingToken
	}
	claims, err := s.tokens.VerifySession(token)
	if err != nil {
		return nil, err
	}
	u, err := s.store.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if !u.IsActive {
		return nil, ErrAccountDeactivated
	}
	return u, nil
}

// BackfillSIScore delegates the SI-score migration to the store.
func (s *Service) BackfillSIScore(ctx context.Context) (int64, error) {
	return s.store.BackfillSIScore(ctx)
}

func (s *Service) authenticated(u *entity.User, method string) (*LoginResult, error) {
	token, err := s.tokens.IssueSession(u)
	if err != nil {
		return nil, err
	}
	s.logger.Debugw("login succeeded", "id", u.ID, "method", method)
	return &LoginResult{Token: token, Method: method, User: u}, nil
}

// collidingField picks the first duplicate field in precedence order.
func collidingField(existing *entity.User, in SignupInput) string {
	switch {
	case existing.Username == in.Username:
		return "username"
	case existing.Email == in.Email:
		return "email"
	case in.AgristackID != "" && existing.AgristackID == in.AgristackID:
		return "agristackId"
	case in.AadhaarNumber != "" && existing.AadhaarNumber == in.AadhaarNumber:
		return "aadhaarNumber"
	}
	return "username"
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validOTPFormat(otp string) bool {
	if len(otp) != 6 {
		return false
	}
	for _, c := range otp {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
