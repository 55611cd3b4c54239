package entity

import "time"

// Account roles accepted at signup.
const (
	RoleFarmer = "farmer"
	RoleDairy  = "dairy"
	RoleMSME   = "msme"
)

// ValidRole reports whether role is a member of the role enum.
func ValidRole(role string) bool {
	switch role {
	case RoleFarmer, RoleDairy, RoleMSME:
		return true
	}
	return false
}

// DefaultSIScore is assigned to every new account and is never mutated by auth flows.
const DefaultSIScore = 300

// User is an account document in the `users` collection.
// AgristackID and AadhaarNumber are optional but globally unique when present
// (sparse unique indexes, see repo.EnsureIndexes).
type User struct {
	ID            string    `bson:"_id"`
	Username      string    `bson:"username"`
	Email         string    `bson:"email"`
	PasswordHash  string    `bson:"password_hash"`
	Role          string    `bson:"role"`
	AgristackID   string    `bson:"agristack_id,omitempty"`
	AadhaarNumber string    `bson:"aadhaar_number,omitempty"`
	PhoneNumber   string    `bson:"phone_number,omitempty"`
	SIScore       int       `bson:"si_score"`
	IsActive      bool      `bson:"is_active"`
	CreatedAt     time.Time `bson:"created_at"`
	UpdatedAt     time.Time `bson:"updated_at"`
}

// Sanitized is the outward projection of a user returned by signup and login
// responses. It never carries the password hash.
type Sanitized struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	Role        string `json:"role"`
	AgristackID string `json:"agristackId,omitempty"`
}

// Profile is the projection returned by session resolve ("me").
type Profile struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	Role        string    `json:"role"`
	AgristackID string    `json:"agristackId,omitempty"`
	SIScore     int       `json:"siScore"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Sanitize returns the password-free view of u.
func (u *User) Sanitize() Sanitized {
	return Sanitized{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		Role:        u.Role,
		AgristackID: u.AgristackID,
	}
}

// Profile returns the session-resolve view of u.
func (u *User) Profile() Profile {
	return Profile{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		Role:        u.Role,
		AgristackID: u.AgristackID,
		SIScore:     u.SIScore,
		CreatedAt:   u.CreatedAt,
	}
}
