package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newHandlerFixture(t *testing.T) (*Handler, *serviceFixture) {
	t.Helper()
	store := newMemStore()
	magic := &captureMagicSender{}
	ts, err := NewTokenService(TokenConfig{Secret: []byte("test-secret-key")})
	require.NoError(t, err)
	svc := NewService(store, BcryptHasher{Cost: bcrypt.MinCost}, ts, StaticOTPProvider{Code: "123456"}, magic, nil)
	return NewHandler(svc, nil), &serviceFixture{svc: svc, store: store, magic: magic}
}

func postJSON(t *testing.T, handler http.HandlerFunc, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHandlerSignupAndLogin(t *testing.T) {
	h, _ := newHandlerFixture(t)

	rec := postJSON(t, h.Signup, map[string]string{
		"username": "farmer1",
		"email":    "f1@test.com",
		"password": "pass123",
		"role":     "farmer",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	body := decodeBody(t, rec)
	assert.NotEmpty(t, body["token"])
	user, ok := body["user"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "farmer1", user["username"])
	_, leaked := user["passwordHash"]
	assert.False(t, leaked)
	_, leaked = user["password_hash"]
	assert.False(t, leaked)

	rec = postJSON(t, h.Login, map[string]string{"username": "farmer1", "password": "pass123"})
	require.Equal(t, http.StatusOK, rec.Code)
	body = decodeBody(t, rec)
	assert.Equal(t, "farmer", body["role"])
	assert.Equal(t, "credentials", body["method"])

	rec = postJSON(t, h.Login, map[string]string{"username": "farmer1", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid credentials", decodeBody(t, rec)["error"])

	rec = postJSON(t, h.Login, map[string]string{"username": "farmer1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerSignupDuplicate(t *testing.T) {
	h, _ := newHandlerFixture(t)

	in := map[string]string{"username": "farmer1", "email": "f1@test.com", "password": "pass123", "role": "farmer"}
	require.Equal(t, http.StatusCreated, postJSON(t, h.Signup, in).Code)

	rec := postJSON(t, h.Signup, in)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Username already exists", decodeBody(t, rec)["error"])

	in["username"] = "farmer2"
	rec = postJSON(t, h.Signup, in)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Email already exists", decodeBody(t, rec)["error"])
}

func TestHandlerMagicLinkAckDoesNotLeakToken(t *testing.T) {
	h, f := newHandlerFixture(t)

	rec := postJSON(t, h.LoginMagicLink, map[string]any{"email": "f1@test.com"})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	_, leaked := body["magicToken"]
	assert.False(t, leaked, "token must go to the delivery collaborator, not the wire")
	assert.NotEmpty(t, f.magic.token)
}

func TestHandlerMagicLinkDevEcho(t *testing.T) {
	h, _ := newHandlerFixture(t)
	h.EchoMagicToken = true

	rec := postJSON(t, h.LoginMagicLink, map[string]any{"email": "f1@test.com"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, decodeBody(t, rec)["magicToken"])
}

func TestHandlerMagicLinkVerify(t *testing.T) {
	h, f := newHandlerFixture(t)
	postJSON(t, h.Signup, map[string]string{"username": "farmer1", "email": "f1@test.com", "password": "pass123", "role": "farmer"})

	require.Equal(t, http.StatusOK, postJSON(t, h.LoginMagicLink, map[string]any{"email": "f1@test.com"}).Code)

	rec := postJSON(t, h.LoginMagicLink, map[string]any{
		"email":      "f1@test.com",
		"verify":     true,
		"magicToken": f.magic.token,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "magiclink", body["method"])
	assert.NotEmpty(t, body["token"])

	rec = postJSON(t, h.LoginMagicLink, map[string]any{"email": "f1@test.com", "verify": true})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerAadhaarPhases(t *testing.T) {
	h, _ := newHandlerFixture(t)
	postJSON(t, h.Signup, map[string]string{
		"username": "farmer1", "email": "f1@test.com", "password": "pass123",
		"role": "farmer", "aadhaarNumber": "111122223333",
	})

	// request phase: acknowledgment only
	rec := postJSON(t, h.LoginAadhaar, map[string]string{"aadhaarNumber": "111122223333"})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	_, hasToken := body["token"]
	assert.False(t, hasToken)

	rec = postJSON(t, h.LoginAadhaar, map[string]string{"aadhaarNumber": "111122223333", "otp": "123456"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "aadhaar", decodeBody(t, rec)["method"])

	rec = postJSON(t, h.LoginAadhaar, map[string]string{"aadhaarNumber": "111122223333", "otp": "12345"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "OTP must be 6 digits", decodeBody(t, rec)["error"])

	rec = postJSON(t, h.LoginAadhaar, map[string]string{"aadhaarNumber": "111122223333", "otp": "654321"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandlerMe(t *testing.T) {
	h, f := newHandlerFixture(t)
	res, err := f.svc.Signup(context.Background(), SignupInput{
		Username: "farmer1", Email: "f1@test.com", Password: "pass123", Role: "farmer",
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer "+res.Token)
	rec := httptest.NewRecorder()
	h.Me(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "farmer1", body["username"])
	assert.Equal(t, float64(300), body["siScore"])
	assert.NotEmpty(t, body["createdAt"])

	req = httptest.NewRequest(http.MethodGet, "/api/me", nil)
	rec = httptest.NewRecorder()
	h.Me(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Missing token", decodeBody(t, rec)["error"])

	req = httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec = httptest.NewRecorder()
	h.Me(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid token", decodeBody(t, rec)["error"])
}
