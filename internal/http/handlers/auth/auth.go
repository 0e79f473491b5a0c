package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/movieflix/movieflix-service/internal/http/handlers"
	"github.com/movieflix/movieflix-service/internal/ratelimit"
	"github.com/movieflix/movieflix-service/internal/router"
	"github.com/movieflix/movieflix-service/internal/session"
	"github.com/movieflix/movieflix-service/internal/storage"
	"github.com/movieflix/movieflix-service/internal/types"
	"github.com/movieflix/movieflix-service/internal/web/response"
)

// ShowRegister displays the registration form. The GuestOnly policy has
// already bounced authenticated clients.
func ShowRegister() router.HandlerFunc {
	return func(r *http.Request, sess *session.Session, params []string) response.Response {
		return response.Render("register", handlers.PageData(sess, "register_error"))
	}
}

// Register processes the registration form. Role defaults to "user".
func Register(store storage.Storage) router.HandlerFunc {
	validate := validator.New()

	return func(r *http.Request, sess *session.Session, params []string) response.Response {
		if err := r.ParseForm(); err != nil {
			sess.SetFlash("register_error", "Invalid form submission.", "error")
			return response.Redirect("/register")
		}

		form := types.RegisterForm{
			Username:        strings.TrimSpace(r.PostFormValue("username")),
			Email:           strings.TrimSpace(r.PostFormValue("email")),
			Password:        r.PostFormValue("password"),
			ConfirmPassword: r.PostFormValue("confirm_password"),
		}

		if err := validate.Struct(form); err != nil {
			sess.SetFlash("register_error", registerValidationMessage(err, form), "error")
			return response.Redirect("/register")
		}

		// Uniqueness pre-check; the unique constraints remain the
		// authority if a concurrent registration slips through.
		if _, err := store.GetUserByIdentifier(form.Username); err == nil {
			sess.SetFlash("register_error", "Username or email already taken.", "error")
			return response.Redirect("/register")
		}
		if _, err := store.GetUserByIdentifier(form.Email); err == nil {
			sess.SetFlash("register_error", "Username or email already taken.", "error")
			return response.Redirect("/register")
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(form.Password), bcrypt.DefaultCost)
		if err != nil {
			slog.Error("failed to hash password", "error", err.Error())
			sess.SetFlash("register_error", "Registration failed. Please try again.", "error")
			return response.Redirect("/register")
		}

		if _, err := store.CreateUser(form.Username, form.Email, string(hash), types.DefaultRole); err != nil {
			if errors.Is(err, storage.ErrDuplicate) {
				sess.SetFlash("register_error", "Username or email already taken.", "error")
				return response.Redirect("/register")
			}
			slog.Error("failed to create user", "error", err.Error())
			sess.SetFlash("register_error", "Registration failed. Please try again.", "error")
			return response.Redirect("/register")
		}

		sess.SetFlash("register_success", "Registration successful! You can now login.", "success")
		return response.Redirect("/login")
	}
}

func registerValidationMessage(err error, form types.RegisterForm) string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return "Please fill in all fields."
	}
	for _, fe := range ve {
		switch fe.Field() {
		case "ConfirmPassword":
			if fe.Tag() == "eqfield" {
				return "Passwords do not match."
			}
		case "Password":
			if fe.Tag() == "min" {
				return "Password must be at least 6 characters long."
			}
		case "Email":
			if fe.Tag() == "email" {
				return "Invalid email format."
			}
		}
	}
	return "Please fill in all fields."
}

// ShowLogin displays the login form, surfacing any pending access-denied
// or registration flash.
func ShowLogin() router.HandlerFunc {
	return func(r *http.Request, sess *session.Session, params []string) response.Response {
		return response.Render("login", handlers.PageData(sess, "login_error", "error", "register_success"))
	}
}

// Login verifies credentials and stores the identity in the session.
// Attempts are rate limited per identifier. Success redirects by role.
func Login(store storage.Storage, attempts *ratelimit.TokenBucket) router.HandlerFunc {
	validate := validator.New()

	return func(r *http.Request, sess *session.Session, params []string) response.Response {
		if err := r.ParseForm(); err != nil {
			sess.SetFlash("login_error", "Invalid form submission.", "error")
			return response.Redirect("/login")
		}

		form := types.LoginForm{
			Identifier: strings.TrimSpace(r.PostFormValue("identifier")),
			Password:   r.PostFormValue("password"),
		}

		if err := validate.Struct(form); err != nil {
			sess.SetFlash("login_error", "Please enter username/email and password.", "error")
			return response.Redirect("/login")
		}

		subject := strings.ToLower(form.Identifier)
		allowed, err := attempts.Allow(r.Context(), subject, "login")
		if err != nil {
			// A redis failure must not lock every account out.
			slog.Error("failed to check login rate limit", "error", err.Error())
			allowed = true
		}
		if !allowed {
			sess.SetFlash("login_error", "Too many login attempts. Please try again later.", "error")
			return response.Redirect("/login")
		}

		user, err := store.GetUserByIdentifier(form.Identifier)
		if err != nil {
			// Deliberately the same message as a wrong password.
			sess.SetFlash("login_error", "Invalid username/email or password.", "error")
			return response.Redirect("/login")
		}

		if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(form.Password)) != nil {
			sess.SetFlash("login_error", "Invalid username/email or password.", "error")
			return response.Redirect("/login")
		}

		if err := sess.Login(user); err != nil {
			slog.Error("failed to write session", "error", err.Error())
			return response.ServerError()
		}

		if err := attempts.Reset(r.Context(), subject, "login"); err != nil {
			slog.Error("failed to reset login rate limit", "error", err.Error())
		}

		switch user.Role {
		case types.RoleAdmin:
			return response.Redirect("/admin/dashboard")
		case types.RoleUploader:
			return response.Redirect("/uploader/manage")
		default:
			return response.Redirect("/user/dashboard")
		}
	}
}

// Logout destroys the session and returns to the homepage.
func Logout() router.HandlerFunc {
	return func(r *http.Request, sess *session.Session, params []string) response.Response {
		if err := sess.Destroy(); err != nil {
			slog.Error("failed to destroy session", "error", err.Error())
		}
		return response.Redirect("/")
	}
}

// Dashboard is the plain-user dashboard; the route policy restricts it to
// the "user" role and bounces other roles home.
func Dashboard() router.HandlerFunc {
	return func(r *http.Request, sess *session.Session, params []string) response.Response {
		return response.Render("user_dashboard", handlers.PageData(sess, "error"))
	}
}
