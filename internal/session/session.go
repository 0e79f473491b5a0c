package session

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/movieflix/movieflix-service/internal/types"
)

// Session hash fields.
const (
	fieldUserID   = "user_id"
	fieldUsername = "username"
	fieldUserRole = "user_role"

	flashPrefix = "flash:"
	keyPrefix   = "session:"
)

// Flash is a one-shot message surfaced across a redirect.
type Flash struct {
	Message string `json:"message"`
	Status  string `json:"status"`
}

// Manager creates and loads sessions backed by a redis hash per client.
// The client holds only an opaque cookie token; all state lives server-side.
type Manager struct {
	client     *redis.Client
	cookieName string
	ttl        time.Duration
}

func NewManager(client *redis.Client, cookieName string, ttl time.Duration) *Manager {
	return &Manager{
		client:     client,
		cookieName: cookieName,
		ttl:        ttl,
	}
}

// Load returns the session for the request, creating a fresh identifier and
// setting the cookie when the client does not present one. The TTL is
// refreshed on every load that touches existing state.
func (m *Manager) Load(w http.ResponseWriter, r *http.Request) *Session {
	ctx := r.Context()

	cookie, err := r.Cookie(m.cookieName)
	if err == nil && cookie.Value != "" {
		s := &Session{manager: m, id: cookie.Value, ctx: ctx, w: w}
		m.client.Expire(ctx, s.key(), m.ttl)
		return s
	}

	id := uuid.NewString()
	m.setCookie(w, id, int(m.ttl.Seconds()))
	return &Session{manager: m, id: id, ctx: ctx, w: w}
}

func (m *Manager) setCookie(w http.ResponseWriter, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// Session is the per-request view of one client's server-side state.
type Session struct {
	manager *Manager
	id      string
	ctx     context.Context
	w       http.ResponseWriter
}

func (s *Session) ID() string { return s.id }

func (s *Session) key() string { return keyPrefix + s.id }

func (s *Session) client() *redis.Client { return s.manager.client }

// Login stores the identity fields for the authenticated user.
func (s *Session) Login(u types.User) error {
	err := s.client().HSet(s.ctx, s.key(),
		fieldUserID, strconv.FormatInt(u.ID, 10),
		fieldUsername, u.Username,
		fieldUserRole, string(u.Role),
	).Err()
	if err != nil {
		return err
	}
	return s.client().Expire(s.ctx, s.key(), s.manager.ttl).Err()
}

// Destroy removes all server-side state and expires the client cookie.
func (s *Session) Destroy() error {
	if err := s.client().Del(s.ctx, s.key()).Err(); err != nil {
		return err
	}
	if s.w != nil {
		s.manager.setCookie(s.w, "", -1)
	}
	return nil
}

func (s *Session) IsLoggedIn() bool {
	ok, err := s.client().HExists(s.ctx, s.key(), fieldUserID).Result()
	return err == nil && ok
}

func (s *Session) UserID() int64 {
	v, err := s.client().HGet(s.ctx, s.key(), fieldUserID).Result()
	if err != nil {
		return 0
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0
	}
	return id
}

func (s *Session) Username() string {
	v, err := s.client().HGet(s.ctx, s.key(), fieldUsername).Result()
	if err != nil {
		return ""
	}
	return v
}

func (s *Session) Role() types.Role {
	v, err := s.client().HGet(s.ctx, s.key(), fieldUserRole).Result()
	if err != nil {
		return ""
	}
	return types.Role(v)
}

// HasRole reports whether the session is authenticated with exactly the
// given role. No hierarchy: HasRole("uploader") is false for an admin.
func (s *Session) HasRole(role types.Role) bool {
	return s.IsLoggedIn() && s.Role() == role
}

// SetFlash stores a one-shot message under key. A second write before a
// read overwrites the first (last write wins).
func (s *Session) SetFlash(key, message, status string) error {
	data, err := json.Marshal(Flash{Message: message, Status: status})
	if err != nil {
		return err
	}
	if err := s.client().HSet(s.ctx, s.key(), flashPrefix+key, data).Err(); err != nil {
		return err
	}
	return s.client().Expire(s.ctx, s.key(), s.manager.ttl).Err()
}

// GetFlash returns the flash stored under key and deletes it, so a second
// read reports absent. The read-and-clear runs in one pipeline, which keeps
// the lifecycle consistent for requests from the same client.
func (s *Session) GetFlash(key string) (Flash, bool) {
	field := flashPrefix + key

	pipe := s.client().TxPipeline()
	get := pipe.HGet(s.ctx, s.key(), field)
	pipe.HDel(s.ctx, s.key(), field)
	_, err := pipe.Exec(s.ctx)
	if err != nil && err != redis.Nil {
		return Flash{}, false
	}

	raw, err := get.Result()
	if err != nil {
		return Flash{}, false
	}

	var f Flash
	if err := json.Unmarshal([]byte(raw), &f); err != nil {
		return Flash{}, false
	}
	return f, true
}
