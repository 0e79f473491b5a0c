package router

import (
	"slices"

	"github.com/movieflix/movieflix-service/internal/session"
	"github.com/movieflix/movieflix-service/internal/types"
	"github.com/movieflix/movieflix-service/internal/web/response"
)

const (
	defaultDenyRedirect = "/login"
	defaultFlashKey     = "error"
	defaultDenyMessage  = "Access denied."
)

// Policy is the declarative access requirement of a route, evaluated by the
// router before the handler runs. Role membership is exact string
// comparison with no hierarchy: a route open to uploaders and admins must
// list both.
type Policy struct {
	// GuestOnly redirects an already-authenticated client away.
	GuestOnly bool
	// RequireLogin demands an authenticated session.
	RequireLogin bool
	// Roles, when non-empty, is the exact set of acceptable roles.
	Roles []types.Role

	// LoginRedirect/LoginMessage/LoginFlashKey control the response when
	// the session is not authenticated. Defaults: /login, a generic
	// access-denied message, flash key "error".
	LoginRedirect string
	LoginMessage  string
	LoginFlashKey string

	// RoleRedirect/RoleMessage/RoleFlashKey control the response when the
	// session is authenticated but holds none of the required roles. They
	// default to the login variants.
	RoleRedirect string
	RoleMessage  string
	RoleFlashKey string
}

// Public places no requirement on the session.
func Public() Policy { return Policy{} }

// GuestOnly bounces authenticated clients to their dashboard, for the
// login and register screens.
func GuestOnly() Policy { return Policy{GuestOnly: true} }

// Roles requires an authenticated session holding one of the listed roles;
// failures flash message and redirect to /login.
func Roles(message string, roles ...types.Role) Policy {
	return Policy{
		RequireLogin: true,
		Roles:        roles,
		LoginMessage: message,
	}
}

// Authenticated requires login with any role.
func Authenticated(message string) Policy {
	return Policy{RequireLogin: true, LoginMessage: message}
}

// Check evaluates the policy. The second return is true when handling must
// stop with the returned response instead of reaching the handler.
func (p Policy) Check(sess *session.Session) (response.Response, bool) {
	if p.GuestOnly {
		if sess.IsLoggedIn() {
			return response.Redirect("/user/dashboard"), true
		}
		return response.Response{}, false
	}

	if !p.RequireLogin {
		return response.Response{}, false
	}

	if !sess.IsLoggedIn() {
		sess.SetFlash(p.loginFlashKey(), p.loginMessage(), "error")
		return response.Redirect(p.loginRedirect()), true
	}

	if len(p.Roles) > 0 && !slices.Contains(p.Roles, sess.Role()) {
		sess.SetFlash(p.roleFlashKey(), p.roleMessage(), "error")
		return response.Redirect(p.roleRedirect()), true
	}

	return response.Response{}, false
}

func (p Policy) loginRedirect() string {
	if p.LoginRedirect != "" {
		return p.LoginRedirect
	}
	return defaultDenyRedirect
}

func (p Policy) loginMessage() string {
	if p.LoginMessage != "" {
		return p.LoginMessage
	}
	return defaultDenyMessage
}

func (p Policy) loginFlashKey() string {
	if p.LoginFlashKey != "" {
		return p.LoginFlashKey
	}
	return defaultFlashKey
}

func (p Policy) roleRedirect() string {
	if p.RoleRedirect != "" {
		return p.RoleRedirect
	}
	return p.loginRedirect()
}

func (p Policy) roleMessage() string {
	if p.RoleMessage != "" {
		return p.RoleMessage
	}
	return p.loginMessage()
}

func (p Policy) roleFlashKey() string {
	if p.RoleFlashKey != "" {
		return p.RoleFlashKey
	}
	return p.loginFlashKey()
}
