package auth

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"golang.org/x/crypto/bcrypt"

	"github.com/movieflix/movieflix-service/internal/ratelimit"
	"github.com/movieflix/movieflix-service/internal/session"
	"github.com/movieflix/movieflix-service/internal/storage/storagetest"
	"github.com/movieflix/movieflix-service/internal/types"
	"github.com/movieflix/movieflix-service/internal/web/response"
)

func newTestSession(t *testing.T) (*session.Session, *ratelimit.TokenBucket, func()) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	m := session.NewManager(client, "movieflix_session", time.Hour)
	sess := m.Load(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	attempts := ratelimit.NewTokenBucket(client, 10, 10)

	cleanup := func() {
		client.Close()
		mr.Close()
	}
	return sess, attempts, cleanup
}

func formRequest(path string, form url.Values) *http.Request {
	r := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return r
}

func mustHash(t *testing.T, password string) string {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt failed: %v", err)
	}
	return string(hash)
}

func TestRegisterSuccess(t *testing.T) {
	sess, _, cleanup := newTestSession(t)
	defer cleanup()
	store := storagetest.New()

	resp := Register(store)(formRequest("/register", url.Values{
		"username":         {"alice"},
		"email":            {"alice@example.com"},
		"password":         {"secret1"},
		"confirm_password": {"secret1"},
	}), sess, nil)

	if resp.Location != "/login" {
		t.Fatalf("Location = %q, want /login", resp.Location)
	}

	flash, ok := sess.GetFlash("register_success")
	if !ok || flash.Message != "Registration successful! You can now login." {
		t.Errorf("flash = %+v, ok = %v", flash, ok)
	}

	user, err := store.GetUserByIdentifier("alice")
	if err != nil {
		t.Fatalf("registered user not stored: %v", err)
	}
	if user.Role != types.RoleUser {
		t.Errorf("role = %q, want user", user.Role)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("secret1")) != nil {
		t.Error("stored hash does not verify against the password")
	}
	if user.PasswordHash == "secret1" {
		t.Error("password stored in the clear")
	}
}

func TestRegisterPasswordMismatch(t *testing.T) {
	sess, _, cleanup := newTestSession(t)
	defer cleanup()
	store := storagetest.New()

	resp := Register(store)(formRequest("/register", url.Values{
		"username":         {"alice"},
		"email":            {"alice@example.com"},
		"password":         {"secret1"},
		"confirm_password": {"secret2"},
	}), sess, nil)

	if resp.Location != "/register" {
		t.Fatalf("Location = %q, want /register", resp.Location)
	}
	flash, ok := sess.GetFlash("register_error")
	if !ok || flash.Message != "Passwords do not match." {
		t.Errorf("flash = %+v, ok = %v", flash, ok)
	}
	if store.UserCount() != 0 {
		t.Error("user created despite mismatched passwords")
	}
}

func TestRegisterShortPassword(t *testing.T) {
	sess, _, cleanup := newTestSession(t)
	defer cleanup()
	store := storagetest.New()

	resp := Register(store)(formRequest("/register", url.Values{
		"username":         {"alice"},
		"email":            {"alice@example.com"},
		"password":         {"abc"},
		"confirm_password": {"abc"},
	}), sess, nil)

	if resp.Location != "/register" {
		t.Fatalf("Location = %q, want /register", resp.Location)
	}
	flash, _ := sess.GetFlash("register_error")
	if flash.Message != "Password must be at least 6 characters long." {
		t.Errorf("flash message = %q", flash.Message)
	}
}

func TestRegisterDuplicateUsername(t *testing.T) {
	sess, _, cleanup := newTestSession(t)
	defer cleanup()
	store := storagetest.New()
	if _, err := store.CreateUser("alice", "first@example.com", "x", types.RoleUser); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	resp := Register(store)(formRequest("/register", url.Values{
		"username":         {"alice"},
		"email":            {"second@example.com"},
		"password":         {"secret1"},
		"confirm_password": {"secret1"},
	}), sess, nil)

	if resp.Location != "/register" {
		t.Fatalf("Location = %q, want /register", resp.Location)
	}
	flash, _ := sess.GetFlash("register_error")
	if flash.Message != "Username or email already taken." {
		t.Errorf("flash message = %q", flash.Message)
	}
	if store.UserCount() != 1 {
		t.Errorf("UserCount = %d, want 1", store.UserCount())
	}
}

func TestLoginRedirectsByRole(t *testing.T) {
	tests := []struct {
		role types.Role
		want string
	}{
		{types.RoleUser, "/user/dashboard"},
		{types.RoleUploader, "/uploader/manage"},
		{types.RoleAdmin, "/admin/dashboard"},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			sess, attempts, cleanup := newTestSession(t)
			defer cleanup()

			store := storagetest.New()
			id, err := store.CreateUser("u_"+string(tt.role), string(tt.role)+"@example.com", mustHash(t, "secret1"), tt.role)
			if err != nil {
				t.Fatalf("seed failed: %v", err)
			}

			resp := Login(store, attempts)(formRequest("/login", url.Values{
				"identifier": {"u_" + string(tt.role)},
				"password":   {"secret1"},
			}), sess, nil)

			if resp.Kind != response.KindRedirect || resp.Location != tt.want {
				t.Fatalf("resp = %+v, want redirect to %s", resp, tt.want)
			}
			if !sess.IsLoggedIn() {
				t.Error("session not authenticated after login")
			}
			if sess.UserID() != id {
				t.Errorf("session user id = %d, want %d", sess.UserID(), id)
			}
			if sess.Role() != tt.role {
				t.Errorf("session role = %q, want %q", sess.Role(), tt.role)
			}
		})
	}
}

func TestLoginByEmail(t *testing.T) {
	sess, attempts, cleanup := newTestSession(t)
	defer cleanup()

	store := storagetest.New()
	if _, err := store.CreateUser("alice", "alice@example.com", mustHash(t, "secret1"), types.RoleUser); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	resp := Login(store, attempts)(formRequest("/login", url.Values{
		"identifier": {"alice@example.com"},
		"password":   {"secret1"},
	}), sess, nil)

	if resp.Location != "/user/dashboard" {
		t.Errorf("Location = %q, want /user/dashboard", resp.Location)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	sess, attempts, cleanup := newTestSession(t)
	defer cleanup()

	store := storagetest.New()
	if _, err := store.CreateUser("alice", "alice@example.com", mustHash(t, "secret1"), types.RoleUser); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	resp := Login(store, attempts)(formRequest("/login", url.Values{
		"identifier": {"alice"},
		"password":   {"wrong"},
	}), sess, nil)

	if resp.Location != "/login" {
		t.Fatalf("Location = %q, want /login", resp.Location)
	}
	flash, _ := sess.GetFlash("login_error")
	if flash.Message != "Invalid username/email or password." {
		t.Errorf("flash message = %q", flash.Message)
	}
	if sess.IsLoggedIn() {
		t.Error("session authenticated after failed login")
	}
}

func TestLoginUnknownIdentifier(t *testing.T) {
	sess, attempts, cleanup := newTestSession(t)
	defer cleanup()
	store := storagetest.New()

	resp := Login(store, attempts)(formRequest("/login", url.Values{
		"identifier": {"ghost"},
		"password":   {"whatever"},
	}), sess, nil)

	if resp.Location != "/login" {
		t.Fatalf("Location = %q, want /login", resp.Location)
	}
	// The unknown-user message matches the wrong-password one.
	flash, _ := sess.GetFlash("login_error")
	if flash.Message != "Invalid username/email or password." {
		t.Errorf("flash message = %q", flash.Message)
	}
}

func TestLoginThrottledAfterRepeatedAttempts(t *testing.T) {
	sess, _, cleanup := newTestSession(t)
	defer cleanup()

	store := storagetest.New()
	if _, err := store.CreateUser("alice", "alice@example.com", mustHash(t, "secret1"), types.RoleUser); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	// A tight bucket so the third attempt is throttled.
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	attempts := ratelimit.NewTokenBucket(client, 2, 2)

	handler := Login(store, attempts)
	badLogin := url.Values{"identifier": {"alice"}, "password": {"wrong"}}

	for i := 0; i < 2; i++ {
		handler(formRequest("/login", badLogin), sess, nil)
		sess.GetFlash("login_error")
	}

	handler(formRequest("/login", badLogin), sess, nil)
	flash, _ := sess.GetFlash("login_error")
	if flash.Message != "Too many login attempts. Please try again later." {
		t.Errorf("flash message = %q", flash.Message)
	}

	// Even the correct password is rejected while throttled.
	handler(formRequest("/login", url.Values{"identifier": {"alice"}, "password": {"secret1"}}), sess, nil)
	if sess.IsLoggedIn() {
		t.Error("throttled login succeeded")
	}
}

func TestLogoutDestroysSession(t *testing.T) {
	sess, _, cleanup := newTestSession(t)
	defer cleanup()

	if err := sess.Login(types.User{ID: 1, Username: "alice", Role: types.RoleUser}); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	resp := Logout()(httptest.NewRequest(http.MethodGet, "/logout", nil), sess, nil)

	if resp.Location != "/" {
		t.Errorf("Location = %q, want /", resp.Location)
	}
	if sess.IsLoggedIn() {
		t.Error("session still authenticated after logout")
	}
}
