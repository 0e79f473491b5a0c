package uploader

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/movieflix/movieflix-service/internal/http/handlers"
	"github.com/movieflix/movieflix-service/internal/router"
	"github.com/movieflix/movieflix-service/internal/services/media"
	"github.com/movieflix/movieflix-service/internal/session"
	"github.com/movieflix/movieflix-service/internal/storage"
	"github.com/movieflix/movieflix-service/internal/types"
	"github.com/movieflix/movieflix-service/internal/web/response"
)

// maxMultipartMemory bounds the in-memory part of multipart parsing;
// larger bodies spill to temporary files.
const maxMultipartMemory = 32 << 20

// ShowUploadForm displays the movie upload form.
func ShowUploadForm() router.HandlerFunc {
	return func(r *http.Request, sess *session.Session, params []string) response.Response {
		return response.Render("upload_form", handlers.PageData(sess, "upload_message"))
	}
}

// ProcessUpload validates the form and both files, stores poster then
// video, and only then persists the movie row. Any failure after the
// poster has been stored removes every file placed so far, so a partial
// upload leaves neither orphaned files nor a movie record.
func ProcessUpload(store storage.Storage, files *media.Service) router.HandlerFunc {
	validate := validator.New()

	return func(r *http.Request, sess *session.Session, params []string) response.Response {
		fail := func(message string) response.Response {
			sess.SetFlash("upload_message", message, "error")
			return response.Redirect("/uploader/upload")
		}

		if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
			return fail("Invalid form submission.")
		}

		form, err := parseMovieForm(r)
		if err != nil || validate.Struct(form) != nil {
			return fail("Please fill in all required text fields correctly.")
		}

		posterFile, posterHeader, err := r.FormFile("poster")
		if err != nil {
			return fail("No poster file uploaded or an upload error occurred.")
		}
		defer posterFile.Close()

		posterType := posterHeader.Header.Get("Content-Type")
		if err := files.Validate(media.KindPoster, posterType, posterHeader.Size); err != nil {
			return fail(uploadErrorMessage(media.KindPoster, err))
		}

		ctx := r.Context()
		rb := files.Begin()

		posterPath, err := files.Store(ctx, media.KindPoster, posterHeader.Filename, posterType, posterFile, posterHeader.Size)
		if err != nil {
			slog.Error("failed to store poster", "error", err.Error())
			return fail("Failed to upload movie poster.")
		}
		rb.Track(posterPath)

		videoFile, videoHeader, err := r.FormFile("video_file")
		if err != nil {
			rb.Clean(ctx)
			return fail("No video file uploaded or an upload error occurred.")
		}
		defer videoFile.Close()

		videoType := videoHeader.Header.Get("Content-Type")
		if err := files.Validate(media.KindVideo, videoType, videoHeader.Size); err != nil {
			rb.Clean(ctx)
			return fail(uploadErrorMessage(media.KindVideo, err))
		}

		videoPath, err := files.Store(ctx, media.KindVideo, videoHeader.Filename, videoType, videoFile, videoHeader.Size)
		if err != nil {
			slog.Error("failed to store video", "error", err.Error())
			rb.Clean(ctx)
			return fail("Failed to upload movie video.")
		}
		rb.Track(videoPath)

		movie := types.Movie{
			Title:       form.Title,
			Description: form.Description,
			ReleaseYear: form.ReleaseYear,
			Director:    form.Director,
			Genre:       form.Genre,
			Duration:    form.Duration,
			PosterPath:  posterPath,
			VideoPath:   videoPath,
			UploaderID:  sess.UserID(),
		}

		if _, err := store.CreateMovie(movie); err != nil {
			slog.Error("failed to create movie", "error", err.Error())
			rb.Clean(ctx)
			return fail("Failed to save movie data to database. Please try again.")
		}

		sess.SetFlash("upload_message", "Movie uploaded successfully!", "success")
		return response.Redirect("/uploader/manage")
	}
}

// parseMovieForm reads the shared text fields of the upload and edit forms.
func parseMovieForm(r *http.Request) (types.MovieForm, error) {
	year, err := strconv.Atoi(strings.TrimSpace(r.PostFormValue("release_year")))
	if err != nil {
		return types.MovieForm{}, err
	}
	duration, err := strconv.Atoi(strings.TrimSpace(r.PostFormValue("duration")))
	if err != nil {
		return types.MovieForm{}, err
	}

	return types.MovieForm{
		Title:       strings.TrimSpace(r.PostFormValue("title")),
		Description: strings.TrimSpace(r.PostFormValue("description")),
		ReleaseYear: year,
		Director:    strings.TrimSpace(r.PostFormValue("director")),
		Genre:       strings.TrimSpace(r.PostFormValue("genre")),
		Duration:    duration,
	}, nil
}

func uploadErrorMessage(kind media.Kind, err error) string {
	switch {
	case kind == media.KindPoster && errors.Is(err, media.ErrInvalidType):
		return "Invalid poster file type. Only JPEG, PNG, GIF are allowed."
	case kind == media.KindPoster && errors.Is(err, media.ErrTooLarge):
		return "Poster file too large."
	case kind == media.KindVideo && errors.Is(err, media.ErrInvalidType):
		return "Invalid video file type. Only MP4, WebM are allowed."
	case kind == media.KindVideo && errors.Is(err, media.ErrTooLarge):
		return "Video file too large."
	}
	return "File upload failed."
}
