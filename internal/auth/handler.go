package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/agristack/agristack-auth/internal/user/repo"
)

// Handler exposes the auth HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger

	// EchoMagicToken reproduces the legacy behavior of returning the
	// magic-link token in the request-phase response. Dev only.
	EchoMagicToken bool
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Handler{svc: svc, logger: logger}
}

// SignupRequest is the request body for POST /api/signup.
type SignupRequest struct {
	Username      string `json:"username"`
	Email         string `json:"email"`
	Password      string `json:"password"`
	Role          string `json:"role"`
	AgristackID   string `json:"agristackId"`
	AadhaarNumber string `json:"aadhaarNumber"`
	PhoneNumber   string `json:"phoneNumber"`
}

func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	res, err := h.svc.Signup(r.Context(), SignupInput{
		Username:      req.Username,
		Email:         req.Email,
		Password:      req.Password,
		Role:          req.Role,
		AgristackID:   req.AgristackID,
		AadhaarNumber: req.AadhaarNumber,
		PhoneNumber:   req.PhoneNumber,
	})
	if err != nil {
		h.failAuth(w, err, "signup")
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string]any{
		"message": "User created successfully",
		"token":   res.Token,
		"user":    res.User.Sanitize(),
	})
}

// LoginRequestBody is the request body for POST /api/login.
type LoginRequestBody struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequestBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	res, err := h.svc.Login(r.Context(), CredentialsLogin{Username: req.Username, Password: req.Password})
	if err != nil {
		h.failAuth(w, err, "login/credentials")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"message": "Login successful",
		"token":   res.Token,
		"role":    res.User.Role,
		"method":  res.Method,
		"user":    res.User.Sanitize(),
	})
}

// AgristackRequest is the request body for POST /api/login/agristack.
type AgristackRequest struct {
	AgristackID string `json:"agristackId"`
}

func (h *Handler) LoginAgristack(w http.ResponseWriter, r *http.Request) {
	var req AgristackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	res, err := h.svc.Login(r.Context(), AgristackLogin{AgristackID: req.AgristackID})
	if err != nil {
		h.failAuth(w, err, "login/agristack")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"message":     "Agristack ID authentication successful",
		"token":       res.Token,
		"role":        res.User.Role,
		"method":      res.Method,
		"agristackId": res.User.AgristackID,
		"user":        res.User.Sanitize(),
	})
}

// MagicLinkRequest is the request body for POST /api/login/magiclink. The
// verify flag switches between the request and verify phases.
type MagicLinkRequest struct {
	Email      string `json:"email"`
	Verify     bool   `json:"verify"`
	MagicToken string `json:"magicToken"`
}

func (h *Handler) LoginMagicLink(w http.ResponseWriter, r *http.Request) {
	var req MagicLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if !req.Verify {
		token, err := h.svc.RequestMagicLink(r.Context(), req.Email)
		if err != nil {
			h.failAuth(w, err, "login/magiclink request")
			return
		}
		body := map[string]any{
			"success": true,
			"message": "Magic link sent to your email address",
			"email":   req.Email,
		}
		if h.EchoMagicToken {
			body["magicToken"] = token
		}
		h.writeJSON(w, http.StatusOK, body)
		return
	}
	res, err := h.svc.Login(r.Context(), MagicLinkVerify{Email: req.Email, Token: req.MagicToken})
	if err != nil {
		h.failAuth(w, err, "login/magiclink verify")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"message": "Magic link authentication successful",
		"token":   res.Token,
		"role":    res.User.Role,
		"method":  res.Method,
		"email":   res.User.Email,
		"user":    res.User.Sanitize(),
	})
}

// AadhaarRequest is the request body for POST /api/login/aadhaar. An absent
// otp selects the request phase, a present one the verify phase.
type AadhaarRequest struct {
	AadhaarNumber string `json:"aadhaarNumber"`
	OTP           string `json:"otp"`
}

func (h *Handler) LoginAadhaar(w http.ResponseWriter, r *http.Request) {
	var req AadhaarRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.OTP == "" {
		if err := h.svc.RequestAadhaarOTP(r.Context(), req.AadhaarNumber); err != nil {
			h.failAuth(w, err, "login/aadhaar request")
			return
		}
		h.writeJSON(w, http.StatusOK, map[string]any{
			"success":       true,
			"message":       "OTP sent to your registered mobile number",
			"aadhaarNumber": req.AadhaarNumber,
		})
		return
	}
	res, err := h.svc.Login(r.Context(), AadhaarVerify{AadhaarNumber: req.AadhaarNumber, OTP: req.OTP})
	if err != nil {
		h.failAuth(w, err, "login/aadhaar verify")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"message":       "Aadhaar eKYC authentication successful",
		"token":         res.Token,
		"role":          res.User.Role,
		"method":        res.Method,
		"aadhaarNumber": res.User.AadhaarNumber,
		"user":          res.User.Sanitize(),
	})
}

// Me resolves the bearer token back to the current identity.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	u, err := h.svc.Resolve(r.Context(), BearerToken(r))
	if err != nil {
		h.failAuth(w, err, "me")
		return
	}
	h.writeJSON(w, http.StatusOK, u.Profile())
}

// MigrateSIScore backfills the default SI score on accounts predating the field.
func (h *Handler) MigrateSIScore(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.BackfillSIScore(r.Context())
	if err != nil {
		h.logger.Errorw("si score migration failed", "err", err)
		h.writeError(w, http.StatusInternalServerError, "Migration failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"message":       "SI score migration completed",
		"modifiedCount": n,
	})
}

// BearerToken extracts the token from an Authorization header, or "".
func BearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

// failAuth maps a flow error to its status code and user-visible message.
func (h *Handler) failAuth(w http.ResponseWriter, err error, op string) {
	status, msg := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Errorw("auth operation failed", "op", op, "err", err)
		msg = "Internal server error"
	} else {
		h.logger.Debugw("auth operation rejected", "op", op, "err", err)
	}
	h.writeError(w, status, msg)
}

func statusFor(err error) (int, string) {
	var dup *repo.DuplicateFieldError
	if errors.As(err, &dup) {
		return http.StatusBadRequest, duplicateMessage(dup.Field)
	}
	var val *repo.ValidationError
	if errors.As(err, &val) {
		return http.StatusBadRequest, val.Error()
	}
	switch {
	case errors.Is(err, ErrMissingField), errors.Is(err, ErrInvalidOTPFormat):
		return http.StatusBadRequest, errorMessage(err)
	case errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrInvalidAgristackID),
		errors.Is(err, ErrInvalidMagicLink),
		errors.Is(err, ErrNoAccountForEmail),
		errors.Is(err, ErrNoAccountForAadhaar),
		errors.Is(err, ErrInvalidOTP),
		errors.Is(err, ErrAccountDeactivated),
		errors.Is(err, ErrMissingToken),
		errors.Is(err, ErrInvalidToken),
		errors.Is(err, ErrTokenExpired),
		errors.Is(err, ErrUserNotFound):
		return http.StatusUnauthorized, errorMessage(err)
	}
	return http.StatusInternalServerError, ""
}

func errorMessage(err error) string {
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return "Invalid credentials"
	case errors.Is(err, ErrInvalidAgristackID):
		return "Invalid Agristack ID"
	case errors.Is(err, ErrInvalidMagicLink):
		return "Invalid or expired magic link"
	case errors.Is(err, ErrNoAccountForEmail):
		return "No account found with this email"
	case errors.Is(err, ErrNoAccountForAadhaar):
		return "No account found with this Aadhaar number"
	case errors.Is(err, ErrInvalidOTP):
		return "Invalid OTP. Please try again."
	case errors.Is(err, ErrInvalidOTPFormat):
		return "OTP must be 6 digits"
	case errors.Is(err, ErrAccountDeactivated):
		return "Account is deactivated"
	case errors.Is(err, ErrMissingToken):
		return "Missing token"
	case errors.Is(err, ErrTokenExpired), errors.Is(err, ErrInvalidToken):
		return "Invalid token"
	case errors.Is(err, ErrUserNotFound):
		return "User not found"
	}
	return err.Error()
}

func duplicateMessage(field string) string {
	switch field {
	case "email":
		return "Email already exists"
	case "agristackId":
		return "Agristack ID already exists"
	case "aadhaarNumber":
		return "Aadhaar number already exists"
	default:
		return "Username already exists"
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}
