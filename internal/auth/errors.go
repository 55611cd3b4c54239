package auth

import (
	"errors"
	"fmt"
)

// Sentinel errors for the authentication flows. Every failure is terminal
// for the request that produced it; callers resubmit, the service never
// retries.
var (
	ErrMissingField        = errors.New("required field missing")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrInvalidAgristackID  = errors.New("invalid agristack id")
	ErrInvalidMagicLink    = errors.New("invalid or expired magic link")
	ErrNoAccountForEmail   = errors.New("no account found with this email")
	ErrNoAccountForAadhaar = errors.New("no account found with this aadhaar number")
	ErrInvalidOTP          = errors.New("invalid otp")
	ErrInvalidOTPFormat    = errors.New("otp must be 6 digits")
	ErrAccountDeactivated  = errors.New("account is deactivated")
	ErrMissingToken        = errors.New("missing token")
	ErrInvalidToken        = errors.New("invalid token")
	ErrTokenExpired        = errors.New("token expired")
	ErrUserNotFound        = errors.New("user not found")
)

// missingField wraps ErrMissingField with the offending field name so the
// handler layer can surface it while errors.Is still matches.
func missingField(field string) error {
	return fmt.Errorf("%w: %s", ErrMissingField, field)
}
