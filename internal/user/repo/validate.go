package repo

import (
	"regexp"

	"github.com/agristack/agristack-auth/internal/user/entity"
)

// Format constraints carried over from the account schema.
var (
	emailPattern   = regexp.MustCompile(`^\w+([.-]?\w+)*@\w+([.-]?\w+)*(\.\w{2,3})+$`)
	aadhaarPattern = regexp.MustCompile(`^\d{12}$`)
	phonePattern   = regexp.MustCompile(`^\d{10}$`)
)

// Validate checks the required and format constraints on a user document
// before it is written. The password hash is assumed present; plaintext
// password policy lives with the caller that hashes it.
func Validate(u *entity.User) error {
	if len(u.Username) < 3 || len(u.Username) > 30 {
		return &ValidationError{Field: "username", Reason: "must be 3-30 characters"}
	}
	if !emailPattern.MatchString(u.Email) {
		return &ValidationError{Field: "email", Reason: "must be a valid email address"}
	}
	if u.PasswordHash == "" {
		return &ValidationError{Field: "password", Reason: "is required"}
	}
	if !entity.ValidRole(u.Role) {
		return &ValidationError{Field: "role", Reason: "must be one of farmer, dairy, msme"}
	}
	if u.AadhaarNumber != "" && !aadhaarPattern.MatchString(u.AadhaarNumber) {
		return &ValidationError{Field: "aadhaarNumber", Reason: "must be exactly 12 digits"}
	}
	if u.PhoneNumber != "" && !phonePattern.MatchString(u.PhoneNumber) {
		return &ValidationError{Field: "phoneNumber", Reason: "must be exactly 10 digits"}
	}
	if u.SIScore < 0 || u.SIScore > 1000 {
		return &ValidationError{Field: "siScore", Reason: "must be between 0 and 1000"}
	}
	return nil
}
