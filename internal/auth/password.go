package auth

import "golang.org/x/crypto/bcrypt"

// PasswordHasher defines the minimal hashing interface (abstract so the
// implementation can move to argon2 without touching the flows).
type PasswordHasher interface {
	Hash(pw string) (string, error)
	Verify(hash, pw string) bool
}

// BcryptHasher implements PasswordHasher with bcrypt. Verification uses the
// library compare, which is safe against timing leaks; never compare hashes
// byte-wise.
type BcryptHasher struct{ Cost int }

// DefaultBcryptCost matches the salt rounds existing password hashes were
// created with.
const DefaultBcryptCost = 10

func (b BcryptHasher) Hash(pw string) (string, error) {
	cost := b.Cost
	if cost == 0 {
		cost = DefaultBcryptCost
	}
	h, err := bcrypt.GenerateFromPassword([]byte(pw), cost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

func (b BcryptHasher) Verify(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}
