package admin

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/movieflix/movieflix-service/internal/config"
	"github.com/movieflix/movieflix-service/internal/http/handlers"
	"github.com/movieflix/movieflix-service/internal/router"
	"github.com/movieflix/movieflix-service/internal/services/media"
	"github.com/movieflix/movieflix-service/internal/session"
	"github.com/movieflix/movieflix-service/internal/storage"
	"github.com/movieflix/movieflix-service/internal/types"
	"github.com/movieflix/movieflix-service/internal/web/response"
)

// Dashboard is the admin landing page.
func Dashboard() router.HandlerFunc {
	return func(r *http.Request, sess *session.Session, params []string) response.Response {
		return response.Render("admin_dashboard", handlers.PageData(sess, "admin_message", "error"))
	}
}

// SiteSettings shows the site-wide upload limits.
func SiteSettings(cfg *config.Config) router.HandlerFunc {
	return func(r *http.Request, sess *session.Session, params []string) response.Response {
		data := handlers.PageData(sess, "admin_message")
		data["MaxPosterMB"] = cfg.Uploads.MaxPosterSize / (1024 * 1024)
		data["MaxVideoMB"] = cfg.Uploads.MaxVideoSize / (1024 * 1024)
		return response.Render("admin_settings", data)
	}
}

// ManageUsers lists every account.
func ManageUsers(store storage.Storage) router.HandlerFunc {
	return func(r *http.Request, sess *session.Session, params []string) response.Response {
		users, err := store.ListUsers()
		if err != nil {
			slog.Error("failed to list users", "error", err.Error())
			return response.ServerError()
		}

		data := handlers.PageData(sess, "admin_message")
		data["Users"] = users
		return response.Render("admin_users", data)
	}
}

// ShowUserEditForm displays the edit form for one account.
func ShowUserEditForm(store storage.Storage) router.HandlerFunc {
	return func(r *http.Request, sess *session.Session, params []string) response.Response {
		user, resp, ok := loadUser(store, sess, params[0])
		if !ok {
			return resp
		}

		data := handlers.PageData(sess, "admin_message")
		data["User"] = user
		data["Role"] = string(user.Role)
		return response.Render("admin_edit_user", data)
	}
}

func loadUser(store storage.Storage, sess *session.Session, rawID string) (types.User, response.Response, bool) {
	abort := func() response.Response {
		sess.SetFlash("admin_message", "User not found.", "error")
		return response.Redirect("/admin/users")
	}

	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return types.User{}, abort(), false
	}

	user, err := store.GetUserByID(id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return types.User{}, abort(), false
		}
		slog.Error("failed to load user", "id", id, "error", err.Error())
		return types.User{}, response.ServerError(), false
	}

	return user, response.Response{}, true
}

// ProcessUserEdit updates an account's username, email and role. The role
// must be one of the closed set, and username/email must stay unique
// across other accounts.
func ProcessUserEdit(store storage.Storage) router.HandlerFunc {
	validate := validator.New()

	return func(r *http.Request, sess *session.Session, params []string) response.Response {
		user, resp, ok := loadUser(store, sess, params[0])
		if !ok {
			return resp
		}

		editPath := "/admin/users/edit/" + params[0]
		fail := func(message string) response.Response {
			sess.SetFlash("admin_message", message, "error")
			return response.Redirect(editPath)
		}

		if err := r.ParseForm(); err != nil {
			return fail("Invalid user data provided.")
		}

		form := types.UserEditForm{
			Username: strings.TrimSpace(r.PostFormValue("username")),
			Email:    strings.TrimSpace(r.PostFormValue("email")),
			Role:     strings.TrimSpace(r.PostFormValue("role")),
		}

		if err := validate.Struct(form); err != nil || !types.ValidRole(form.Role) {
			return fail("Invalid user data provided.")
		}

		// Uniqueness against other accounts; editing a user back to their
		// own current name is fine.
		if existing, err := store.GetUserByIdentifier(form.Username); err == nil && existing.ID != user.ID {
			return fail("Username already taken by another user.")
		}
		if existing, err := store.GetUserByIdentifier(form.Email); err == nil && existing.ID != user.ID {
			return fail("Email already taken by another user.")
		}

		if err := store.UpdateUser(user.ID, form.Username, form.Email, types.Role(form.Role)); err != nil {
			if errors.Is(err, storage.ErrDuplicate) {
				return fail("Username or email already taken by another user.")
			}
			slog.Error("failed to update user", "id", user.ID, "error", err.Error())
			sess.SetFlash("admin_message", "Failed to update user. Please try again.", "error")
			return response.Redirect("/admin/users")
		}

		sess.SetFlash("admin_message", "User updated successfully!", "success")
		return response.Redirect("/admin/users")
	}
}

// DeleteUser removes an account. An admin cannot delete the account they
// are logged in as. Deleting a user cascades to their movie rows.
func DeleteUser(store storage.Storage) router.HandlerFunc {
	return func(r *http.Request, sess *session.Session, params []string) response.Response {
		if r.Method != http.MethodPost {
			sess.SetFlash("admin_message", "Invalid request method for deletion.", "error")
			return response.Redirect("/admin/users")
		}

		id, err := strconv.ParseInt(params[0], 10, 64)
		if err != nil {
			sess.SetFlash("admin_message", "User not found.", "error")
			return response.Redirect("/admin/users")
		}

		if id == sess.UserID() {
			sess.SetFlash("admin_message", "You cannot delete your own admin account.", "error")
			return response.Redirect("/admin/users")
		}

		if err := store.DeleteUser(id); err != nil {
			slog.Error("failed to delete user", "id", id, "error", err.Error())
			sess.SetFlash("admin_message", "Failed to delete user.", "error")
		} else {
			sess.SetFlash("admin_message", "User deleted successfully!", "success")
		}

		return response.Redirect("/admin/users")
	}
}

// ManageContent lists every movie in the catalog.
func ManageContent(store storage.Storage) router.HandlerFunc {
	return func(r *http.Request, sess *session.Session, params []string) response.Response {
		movies, err := store.ListMovies()
		if err != nil {
			slog.Error("failed to list movies", "error", err.Error())
			return response.ServerError()
		}

		data := handlers.PageData(sess, "admin_message")
		data["Movies"] = movies
		return response.Render("admin_movies", data)
	}
}

// DeleteContent removes any movie regardless of uploader: files first,
// then the record.
func DeleteContent(store storage.Storage, files *media.Service) router.HandlerFunc {
	return func(r *http.Request, sess *session.Session, params []string) response.Response {
		if r.Method != http.MethodPost {
			sess.SetFlash("admin_message", "Invalid request method for deletion.", "error")
			return response.Redirect("/admin/movies")
		}

		abort := func() response.Response {
			sess.SetFlash("admin_message", "Movie not found for deletion.", "error")
			return response.Redirect("/admin/movies")
		}

		id, err := strconv.ParseInt(params[0], 10, 64)
		if err != nil {
			return abort()
		}

		movie, err := store.GetMovieByID(id)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return abort()
			}
			slog.Error("failed to load movie", "id", id, "error", err.Error())
			return response.ServerError()
		}

		ctx := r.Context()
		if err := files.Remove(ctx, movie.PosterPath); err != nil {
			slog.Error("failed to remove poster", "path", movie.PosterPath, "error", err.Error())
		}
		if err := files.Remove(ctx, movie.VideoPath); err != nil {
			slog.Error("failed to remove video", "path", movie.VideoPath, "error", err.Error())
		}

		if err := store.DeleteMovie(movie.ID); err != nil {
			slog.Error("failed to delete movie", "id", movie.ID, "error", err.Error())
			sess.SetFlash("admin_message", "Failed to delete movie from database.", "error")
		} else {
			sess.SetFlash("admin_message", "Movie deleted successfully!", "success")
		}

		return response.Redirect("/admin/movies")
	}
}
