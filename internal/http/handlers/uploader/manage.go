package uploader

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/movieflix/movieflix-service/internal/http/handlers"
	"github.com/movieflix/movieflix-service/internal/router"
	"github.com/movieflix/movieflix-service/internal/services/media"
	"github.com/movieflix/movieflix-service/internal/session"
	"github.com/movieflix/movieflix-service/internal/storage"
	"github.com/movieflix/movieflix-service/internal/types"
	"github.com/movieflix/movieflix-service/internal/web/response"
)

// ListMovies shows the movies uploaded by the acting user.
func ListMovies(store storage.Storage) router.HandlerFunc {
	return func(r *http.Request, sess *session.Session, params []string) response.Response {
		movies, err := store.ListMoviesByUploader(sess.UserID())
		if err != nil {
			slog.Error("failed to list uploader movies", "uploader_id", sess.UserID(), "error", err.Error())
			return response.ServerError()
		}

		data := handlers.PageData(sess, "manage_message", "upload_message", "error")
		data["Movies"] = movies
		return response.Render("manage_movies", data)
	}
}

// loadOwnedMovie resolves the {id} parameter and enforces the ownership
// rule: the acting user must be the movie's uploader, or an admin. The
// returned response is the abort redirect when ok is false.
func loadOwnedMovie(store storage.Storage, sess *session.Session, rawID, notFoundMsg, deniedMsg string) (types.Movie, response.Response, bool) {
	abort := func(message string) response.Response {
		sess.SetFlash("manage_message", message, "error")
		return response.Redirect("/uploader/manage")
	}

	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return types.Movie{}, abort(notFoundMsg), false
	}

	movie, err := store.GetMovieByID(id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return types.Movie{}, abort(notFoundMsg), false
		}
		slog.Error("failed to load movie", "id", id, "error", err.Error())
		return types.Movie{}, response.ServerError(), false
	}

	if movie.UploaderID != sess.UserID() && !sess.HasRole(types.RoleAdmin) {
		return types.Movie{}, abort(deniedMsg), false
	}

	return movie, response.Response{}, true
}

// ShowEditForm displays the edit form for one of the user's movies.
func ShowEditForm(store storage.Storage) router.HandlerFunc {
	return func(r *http.Request, sess *session.Session, params []string) response.Response {
		movie, resp, ok := loadOwnedMovie(store, sess, params[0],
			"Movie not found.",
			"Unauthorized access: You can only edit your own movies.")
		if !ok {
			return resp
		}

		data := handlers.PageData(sess, "manage_message")
		data["Movie"] = movie
		return response.Render("edit_movie", data)
	}
}

// ProcessEdit updates a movie's fields. New files are optional; a supplied
// file replaces the stored one, removing the old file only after the new
// one is safely in place. Failures remove any newly stored files.
func ProcessEdit(store storage.Storage, files *media.Service) router.HandlerFunc {
	validate := validator.New()

	return func(r *http.Request, sess *session.Session, params []string) response.Response {
		movie, resp, ok := loadOwnedMovie(store, sess, params[0],
			"Movie not found for editing.",
			"Unauthorized access: You can only edit your own movies.")
		if !ok {
			return resp
		}

		editPath := "/uploader/edit/" + params[0]
		fail := func(message string) response.Response {
			sess.SetFlash("manage_message", message, "error")
			return response.Redirect(editPath)
		}

		if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
			return fail("Invalid form submission.")
		}

		form, err := parseMovieForm(r)
		if err != nil || validate.Struct(form) != nil {
			return fail("Please fill in all required text fields correctly for editing.")
		}

		ctx := r.Context()
		rb := files.Begin()

		oldPosterPath, oldVideoPath := "", ""

		posterFile, posterHeader, err := r.FormFile("poster")
		if err == nil {
			defer posterFile.Close()
			posterType := posterHeader.Header.Get("Content-Type")
			if files.Validate(media.KindPoster, posterType, posterHeader.Size) != nil {
				return fail("Invalid or too large new poster file.")
			}
			newPath, err := files.Store(ctx, media.KindPoster, posterHeader.Filename, posterType, posterFile, posterHeader.Size)
			if err != nil {
				slog.Error("failed to store poster", "error", err.Error())
				return fail("Failed to upload new movie poster.")
			}
			rb.Track(newPath)
			oldPosterPath = movie.PosterPath
			movie.PosterPath = newPath
		}

		videoFile, videoHeader, err := r.FormFile("video_file")
		if err == nil {
			defer videoFile.Close()
			videoType := videoHeader.Header.Get("Content-Type")
			if files.Validate(media.KindVideo, videoType, videoHeader.Size) != nil {
				rb.Clean(ctx)
				return fail("Invalid or too large new video file.")
			}
			newPath, err := files.Store(ctx, media.KindVideo, videoHeader.Filename, videoType, videoFile, videoHeader.Size)
			if err != nil {
				slog.Error("failed to store video", "error", err.Error())
				rb.Clean(ctx)
				return fail("Failed to upload new movie video.")
			}
			rb.Track(newPath)
			oldVideoPath = movie.VideoPath
			movie.VideoPath = newPath
		}

		movie.Title = form.Title
		movie.Description = form.Description
		movie.ReleaseYear = form.ReleaseYear
		movie.Director = form.Director
		movie.Genre = form.Genre
		movie.Duration = form.Duration

		if err := store.UpdateMovie(movie); err != nil {
			slog.Error("failed to update movie", "id", movie.ID, "error", err.Error())
			rb.Clean(ctx)
			return fail("Failed to update movie data. Please try again.")
		}

		// Replaced files are removed only now that the row points at the
		// new ones.
		files.Remove(ctx, oldPosterPath)
		files.Remove(ctx, oldVideoPath)

		sess.SetFlash("manage_message", "Movie updated successfully!", "success")
		return response.Redirect("/uploader/manage")
	}
}

// DeleteMovie removes a movie's files, then its record. Missing files are
// not an error, so retrying a half-finished delete succeeds.
func DeleteMovie(store storage.Storage, files *media.Service) router.HandlerFunc {
	return func(r *http.Request, sess *session.Session, params []string) response.Response {
		if r.Method != http.MethodPost {
			sess.SetFlash("manage_message", "Invalid request method for deletion.", "error")
			return response.Redirect("/uploader/manage")
		}

		movie, resp, ok := loadOwnedMovie(store, sess, params[0],
			"Movie not found for deletion.",
			"Unauthorized access: You can only delete your own movies.")
		if !ok {
			return resp
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
			sess.SetFlash("manage_message", "Failed to delete movie from database.", "error")
		} else {
			sess.SetFlash("manage_message", "Movie deleted successfully!", "success")
		}

		return response.Redirect("/uploader/manage")
	}
}
