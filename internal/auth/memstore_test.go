package auth

import (
	"context"
	"sync"
	"time"

	"github.com/agristack/agristack-auth/internal/user/entity"
	"github.com/agristack/agristack-auth/internal/user/repo"
)

// memStore is an in-memory UserStore with the same uniqueness semantics the
// Mongo indexes enforce.
type memStore struct {
	mu    sync.Mutex
	users map[string]*entity.User
}

func newMemStore() *memStore {
	return &memStore{users: map[string]*entity.User{}}
}

func (m *memStore) FindByID(ctx context.Context, id string) (*entity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, repo.ErrNotFound
}

func (m *memStore) find(match func(*entity.User) bool) (*entity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repo.ErrNotFound
}

func (m *memStore) FindByUsernameOrEmail(ctx context.Context, identifier string) (*entity.User, error) {
	return m.find(func(u *entity.User) bool {
		return u.Username == identifier || u.Email == identifier
	})
}

func (m *memStore) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	return m.find(func(u *entity.User) bool { return u.Email == email })
}

func (m *memStore) FindByAgristackID(ctx context.Context, agristackID string) (*entity.User, error) {
	return m.find(func(u *entity.User) bool {
		return u.AgristackID != "" && u.AgristackID == agristackID
	})
}

func (m *memStore) FindByAadhaar(ctx context.Context, aadhaarNumber string) (*entity.User, error) {
	return m.find(func(u *entity.User) bool {
		return u.AadhaarNumber != "" && u.AadhaarNumber == aadhaarNumber
	})
}

func (m *memStore) FindByAnyIdentifier(ctx context.Context, ids repo.IdentifierSet) (*entity.User, error) {
	return m.find(func(u *entity.User) bool {
		switch {
		case ids.Username != "" && u.Username == ids.Username:
			return true
		case ids.Email != "" && u.Email == ids.Email:
			return true
		case ids.AgristackID != "" && u.AgristackID == ids.AgristackID:
			return true
		case ids.AadhaarNumber != "" && u.AadhaarNumber == ids.AadhaarNumber:
			return true
		}
		return false
	})
}

func (m *memStore) Create(ctx context.Context, u *entity.User) error {
	if err := repo.Validate(u); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, other := range m.users {
		switch {
		case other.Username == u.Username:
			return &repo.DuplicateFieldError{Field: "username"}
		case other.Email == u.Email:
			return &repo.DuplicateFieldError{Field: "email"}
		case u.AgristackID != "" && other.AgristackID == u.AgristackID:
			return &repo.DuplicateFieldError{Field: "agristackId"}
		case u.AadhaarNumber != "" && other.AadhaarNumber == u.AadhaarNumber:
			return &repo.DuplicateFieldError{Field: "aadhaarNumber"}
		}
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memStore) BackfillSIScore(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, u := range m.users {
		if u.SIScore == 0 {
			u.SIScore = entity.DefaultSIScore
			n++
		}
	}
	return n, nil
}

// deactivate flips isActive for a stored user, bypassing the service.
func (m *memStore) deactivate(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		u.IsActive = false
	}
}
