package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agristack/agristack-auth/internal/auth"
	"github.com/agristack/agristack-auth/internal/user/entity"
)

type fakeResolver struct {
	user *entity.User
}

func (r fakeResolver) Resolve(ctx context.Context, token string) (*entity.User, error) {
	if token == "" {
		return nil, auth.ErrMissingToken
	}
	if token != "good" || r.user == nil {
		return nil, auth.ErrInvalidToken
	}
	return r.user, nil
}

func TestRequireAuth(t *testing.T) {
	u := &entity.User{ID: "usr_1", Username: "farmer1", Role: entity.RoleFarmer, IsActive: true}
	var seen *entity.User
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, ok := UserFrom(r.Context())
		require.True(t, ok)
		seen = got
		w.WriteHeader(http.StatusOK)
	})
	handler := RequireAuth(fakeResolver{user: u})(next)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer good")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, seen)
	assert.Equal(t, "usr_1", seen.ID)
}

func TestRequireAuthRejections(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("next handler must not run")
	})
	handler := RequireAuth(fakeResolver{})(next)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Missing token")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer bad")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid token")
}
