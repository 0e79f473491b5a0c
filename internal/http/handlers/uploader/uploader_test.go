package uploader

import (
	"bytes"
	"fmt"
	"io/fs"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"

	"github.com/movieflix/movieflix-service/internal/config"
	"github.com/movieflix/movieflix-service/internal/services/media"
	"github.com/movieflix/movieflix-service/internal/session"
	"github.com/movieflix/movieflix-service/internal/storage/storagetest"
	"github.com/movieflix/movieflix-service/internal/types"
	"github.com/movieflix/movieflix-service/internal/web/response"
)

func newTestSession(t *testing.T, u types.User) (*session.Session, func()) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	m := session.NewManager(client, "movieflix_session", time.Hour)
	sess := m.Load(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if err := sess.Login(u); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	cleanup := func() {
		client.Close()
		mr.Close()
	}
	return sess, cleanup
}

func newTestMedia(t *testing.T) (*media.Service, string) {
	base := t.TempDir()
	cfg := &config.Config{
		Uploads: config.Uploads{
			PosterDir:         "assets/images/posters",
			VideoDir:          "assets/videos",
			MaxPosterSize:     5 * 1024 * 1024,
			MaxVideoSize:      500 * 1024 * 1024,
			AllowedImageTypes: []string{"image/jpeg", "image/png", "image/gif"},
			AllowedVideoTypes: []string{"video/mp4", "video/webm"},
		},
	}
	return media.NewService(cfg, media.NewLocalStore(base)), base
}

type filePart struct {
	field       string
	name        string
	contentType string
	content     string
}

func multipartRequest(t *testing.T, path string, fields url.Values, files ...filePart) *http.Request {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for key, vals := range fields {
		for _, v := range vals {
			if err := w.WriteField(key, v); err != nil {
				t.Fatalf("WriteField failed: %v", err)
			}
		}
	}
	for _, f := range files {
		h := textproto.MIMEHeader{}
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, f.field, f.name))
		h.Set("Content-Type", f.contentType)
		part, err := w.CreatePart(h)
		if err != nil {
			t.Fatalf("CreatePart failed: %v", err)
		}
		if _, err := part.Write([]byte(f.content)); err != nil {
			t.Fatalf("part write failed: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("multipart close failed: %v", err)
	}

	r := httptest.NewRequest(http.MethodPost, path, &buf)
	r.Header.Set("Content-Type", w.FormDataContentType())
	return r
}

func movieFields() url.Values {
	return url.Values{
		"title":        {"Heat"},
		"description":  {"A heist crew and a detective."},
		"release_year": {"1995"},
		"director":     {"Michael Mann"},
		"genre":        {"Crime"},
		"duration":     {"170"},
	}
}

func validPoster() filePart {
	return filePart{field: "poster", name: "poster.png", contentType: "image/png", content: "png-bytes"}
}

func validVideo() filePart {
	return filePart{field: "video_file", name: "movie.mp4", contentType: "video/mp4", content: "mp4-bytes"}
}

// storedFileCount walks the media base directory counting regular files.
func storedFileCount(t *testing.T, base string) int {
	n := 0
	err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			n++
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walk failed: %v", err)
	}
	return n
}

func TestProcessUploadSuccess(t *testing.T) {
	sess, cleanup := newTestSession(t, types.User{ID: 7, Username: "up", Role: types.RoleUploader})
	defer cleanup()
	store := storagetest.New()
	files, base := newTestMedia(t)

	r := multipartRequest(t, "/uploader/upload", movieFields(), validPoster(), validVideo())
	resp := ProcessUpload(store, files)(r, sess, nil)

	if resp.Location != "/uploader/manage" {
		t.Fatalf("Location = %q, want /uploader/manage", resp.Location)
	}
	flash, _ := sess.GetFlash("upload_message")
	if flash.Message != "Movie uploaded successfully!" || flash.Status != "success" {
		t.Errorf("flash = %+v", flash)
	}

	movies, err := store.ListMoviesByUploader(7)
	if err != nil || len(movies) != 1 {
		t.Fatalf("movies for uploader 7 = %v, err = %v", movies, err)
	}
	m := movies[0]
	if m.Title != "Heat" || m.ReleaseYear != 1995 || m.Duration != 170 {
		t.Errorf("stored movie = %+v", m)
	}
	if !strings.HasPrefix(m.PosterPath, "assets/images/posters/poster_") {
		t.Errorf("poster path = %q", m.PosterPath)
	}
	if !strings.HasPrefix(m.VideoPath, "assets/videos/video_") {
		t.Errorf("video path = %q", m.VideoPath)
	}
	if got := storedFileCount(t, base); got != 2 {
		t.Errorf("files on disk = %d, want 2", got)
	}
}

func TestProcessUploadInvalidVideoRemovesPoster(t *testing.T) {
	sess, cleanup := newTestSession(t, types.User{ID: 7, Username: "up", Role: types.RoleUploader})
	defer cleanup()
	store := storagetest.New()
	files, base := newTestMedia(t)

	video := filePart{field: "video_file", name: "movie.avi", contentType: "video/x-msvideo", content: "avi"}
	r := multipartRequest(t, "/uploader/upload", movieFields(), validPoster(), video)
	resp := ProcessUpload(store, files)(r, sess, nil)

	if resp.Location != "/uploader/upload" {
		t.Fatalf("Location = %q, want /uploader/upload", resp.Location)
	}
	flash, _ := sess.GetFlash("upload_message")
	if flash.Message != "Invalid video file type. Only MP4, WebM are allowed." {
		t.Errorf("flash message = %q", flash.Message)
	}
	if store.MovieCount() != 0 {
		t.Error("movie row created despite rejected video")
	}
	// The already-stored poster must be rolled back.
	if got := storedFileCount(t, base); got != 0 {
		t.Errorf("files on disk = %d, want 0", got)
	}
}

func TestProcessUploadStorageFailureRemovesBothFiles(t *testing.T) {
	sess, cleanup := newTestSession(t, types.User{ID: 7, Username: "up", Role: types.RoleUploader})
	defer cleanup()
	store := storagetest.New()
	store.FailCreateMovie = true
	files, base := newTestMedia(t)

	r := multipartRequest(t, "/uploader/upload", movieFields(), validPoster(), validVideo())
	resp := ProcessUpload(store, files)(r, sess, nil)

	if resp.Location != "/uploader/upload" {
		t.Fatalf("Location = %q, want /uploader/upload", resp.Location)
	}
	flash, _ := sess.GetFlash("upload_message")
	if flash.Message != "Failed to save movie data to database. Please try again." {
		t.Errorf("flash message = %q", flash.Message)
	}
	if got := storedFileCount(t, base); got != 0 {
		t.Errorf("files on disk = %d, want 0", got)
	}
}

func TestProcessUploadMissingPoster(t *testing.T) {
	sess, cleanup := newTestSession(t, types.User{ID: 7, Username: "up", Role: types.RoleUploader})
	defer cleanup()
	store := storagetest.New()
	files, _ := newTestMedia(t)

	r := multipartRequest(t, "/uploader/upload", movieFields(), validVideo())
	resp := ProcessUpload(store, files)(r, sess, nil)

	if resp.Location != "/uploader/upload" {
		t.Fatalf("Location = %q", resp.Location)
	}
	flash, _ := sess.GetFlash("upload_message")
	if flash.Message != "No poster file uploaded or an upload error occurred." {
		t.Errorf("flash message = %q", flash.Message)
	}
}

func TestProcessUploadRejectsBadTextFields(t *testing.T) {
	sess, cleanup := newTestSession(t, types.User{ID: 7, Username: "up", Role: types.RoleUploader})
	defer cleanup()
	store := storagetest.New()
	files, _ := newTestMedia(t)

	fields := movieFields()
	fields.Set("release_year", "1700") // before the earliest accepted year

	r := multipartRequest(t, "/uploader/upload", fields, validPoster(), validVideo())
	resp := ProcessUpload(store, files)(r, sess, nil)

	if resp.Location != "/uploader/upload" {
		t.Fatalf("Location = %q", resp.Location)
	}
	flash, _ := sess.GetFlash("upload_message")
	if flash.Message != "Please fill in all required text fields correctly." {
		t.Errorf("flash message = %q", flash.Message)
	}
	if store.MovieCount() != 0 {
		t.Error("movie row created despite invalid fields")
	}
}

func seedMovie(t *testing.T, store *storagetest.Fake, uploaderID int64) types.Movie {
	id, err := store.CreateMovie(types.Movie{
		Title:       "Seeded",
		Description: "d",
		ReleaseYear: 2000,
		Genre:       "Drama",
		Duration:    100,
		PosterPath:  "assets/images/posters/poster_seed.png",
		VideoPath:   "assets/videos/video_seed.mp4",
		UploaderID:  uploaderID,
	})
	if err != nil {
		t.Fatalf("seed movie failed: %v", err)
	}
	m, err := store.GetMovieByID(id)
	if err != nil {
		t.Fatalf("seed readback failed: %v", err)
	}
	return m
}

func TestShowEditFormRejectsOtherUploader(t *testing.T) {
	sess, cleanup := newTestSession(t, types.User{ID: 2, Username: "other", Role: types.RoleUploader})
	defer cleanup()
	store := storagetest.New()
	movie := seedMovie(t, store, 1)

	r := httptest.NewRequest(http.MethodGet, "/uploader/edit/1", nil)
	resp := ShowEditForm(store)(r, sess, []string{fmt.Sprint(movie.ID)})

	if resp.Kind != response.KindRedirect || resp.Location != "/uploader/manage" {
		t.Fatalf("resp = %+v, want redirect to /uploader/manage", resp)
	}
	flash, _ := sess.GetFlash("manage_message")
	if flash.Message != "Unauthorized access: You can only edit your own movies." {
		t.Errorf("flash message = %q", flash.Message)
	}
}

func TestShowEditFormAllowsOwnerAndAdmin(t *testing.T) {
	store := storagetest.New()
	movie := seedMovie(t, store, 1)

	for _, u := range []types.User{
		{ID: 1, Username: "owner", Role: types.RoleUploader},
		{ID: 99, Username: "root", Role: types.RoleAdmin},
	} {
		sess, cleanup := newTestSession(t, u)
		r := httptest.NewRequest(http.MethodGet, "/uploader/edit/1", nil)
		resp := ShowEditForm(store)(r, sess, []string{fmt.Sprint(movie.ID)})
		cleanup()

		if resp.Kind != response.KindRender || resp.Template != "edit_movie" {
			t.Errorf("%s: resp = %+v, want edit_movie render", u.Username, resp)
		}
	}
}

func TestShowEditFormUnknownID(t *testing.T) {
	sess, cleanup := newTestSession(t, types.User{ID: 1, Username: "up", Role: types.RoleUploader})
	defer cleanup()
	store := storagetest.New()

	r := httptest.NewRequest(http.MethodGet, "/uploader/edit/999", nil)
	resp := ShowEditForm(store)(r, sess, []string{"999"})

	if resp.Location != "/uploader/manage" {
		t.Fatalf("resp = %+v", resp)
	}
	flash, _ := sess.GetFlash("manage_message")
	if flash.Message != "Movie not found." {
		t.Errorf("flash message = %q", flash.Message)
	}
}

func TestProcessEditUpdatesFieldsWithoutFiles(t *testing.T) {
	sess, cleanup := newTestSession(t, types.User{ID: 1, Username: "up", Role: types.RoleUploader})
	defer cleanup()
	store := storagetest.New()
	files, _ := newTestMedia(t)
	movie := seedMovie(t, store, 1)

	fields := movieFields()
	fields.Set("title", "Renamed")

	r := multipartRequest(t, "/uploader/edit/"+fmt.Sprint(movie.ID), fields)
	resp := ProcessEdit(store, files)(r, sess, []string{fmt.Sprint(movie.ID)})

	if resp.Location != "/uploader/manage" {
		t.Fatalf("Location = %q", resp.Location)
	}
	flash, _ := sess.GetFlash("manage_message")
	if flash.Message != "Movie updated successfully!" {
		t.Errorf("flash message = %q", flash.Message)
	}

	updated, err := store.GetMovieByID(movie.ID)
	if err != nil {
		t.Fatalf("readback failed: %v", err)
	}
	if updated.Title != "Renamed" {
		t.Errorf("title = %q", updated.Title)
	}
	// Files were not resubmitted, so the stored paths stay put.
	if updated.PosterPath != movie.PosterPath || updated.VideoPath != movie.VideoPath {
		t.Errorf("paths changed: %+v", updated)
	}
}

func TestProcessEditReplacesPoster(t *testing.T) {
	sess, cleanup := newTestSession(t, types.User{ID: 1, Username: "up", Role: types.RoleUploader})
	defer cleanup()
	store := storagetest.New()
	files, base := newTestMedia(t)
	movie := seedMovie(t, store, 1)

	r := multipartRequest(t, "/uploader/edit/"+fmt.Sprint(movie.ID), movieFields(), validPoster())
	resp := ProcessEdit(store, files)(r, sess, []string{fmt.Sprint(movie.ID)})

	if resp.Location != "/uploader/manage" {
		t.Fatalf("resp = %+v", resp)
	}

	updated, err := store.GetMovieByID(movie.ID)
	if err != nil {
		t.Fatalf("readback failed: %v", err)
	}
	if updated.PosterPath == movie.PosterPath {
		t.Error("poster path not replaced")
	}
	if updated.VideoPath != movie.VideoPath {
		t.Error("video path changed without a new video")
	}
	if got := storedFileCount(t, base); got != 1 {
		t.Errorf("files on disk = %d, want 1", got)
	}
}

func TestDeleteMovieRejectsGet(t *testing.T) {
	sess, cleanup := newTestSession(t, types.User{ID: 1, Username: "up", Role: types.RoleUploader})
	defer cleanup()
	store := storagetest.New()
	files, _ := newTestMedia(t)
	movie := seedMovie(t, store, 1)

	r := httptest.NewRequest(http.MethodGet, "/uploader/delete/1", nil)
	resp := DeleteMovie(store, files)(r, sess, []string{fmt.Sprint(movie.ID)})

	if resp.Location != "/uploader/manage" {
		t.Fatalf("Location = %q", resp.Location)
	}
	flash, _ := sess.GetFlash("manage_message")
	if flash.Message != "Invalid request method for deletion." {
		t.Errorf("flash message = %q", flash.Message)
	}
	if store.MovieCount() != 1 {
		t.Error("movie deleted by a GET request")
	}
}

func TestDeleteMovieRemovesRowAndFiles(t *testing.T) {
	sess, cleanup := newTestSession(t, types.User{ID: 7, Username: "up", Role: types.RoleUploader})
	defer cleanup()
	store := storagetest.New()
	files, base := newTestMedia(t)

	// Upload for real so the files exist on disk.
	r := multipartRequest(t, "/uploader/upload", movieFields(), validPoster(), validVideo())
	if resp := ProcessUpload(store, files)(r, sess, nil); resp.Location != "/uploader/manage" {
		t.Fatalf("upload failed: %+v", resp)
	}
	sess.GetFlash("upload_message")

	movies, _ := store.ListMoviesByUploader(7)
	if len(movies) != 1 {
		t.Fatalf("movies = %v", movies)
	}
	id := movies[0].ID

	r = httptest.NewRequest(http.MethodPost, "/uploader/delete/1", nil)
	resp := DeleteMovie(store, files)(r, sess, []string{fmt.Sprint(id)})

	if resp.Location != "/uploader/manage" {
		t.Fatalf("Location = %q", resp.Location)
	}
	flash, _ := sess.GetFlash("manage_message")
	if flash.Message != "Movie deleted successfully!" {
		t.Errorf("flash message = %q", flash.Message)
	}
	if store.MovieCount() != 0 {
		t.Error("movie row still present")
	}
	if got := storedFileCount(t, base); got != 0 {
		t.Errorf("files on disk = %d, want 0", got)
	}
}

func TestDeleteMovieRejectsOtherUploader(t *testing.T) {
	sess, cleanup := newTestSession(t, types.User{ID: 2, Username: "other", Role: types.RoleUploader})
	defer cleanup()
	store := storagetest.New()
	files, _ := newTestMedia(t)
	movie := seedMovie(t, store, 1)

	r := httptest.NewRequest(http.MethodPost, "/uploader/delete/1", nil)
	resp := DeleteMovie(store, files)(r, sess, []string{fmt.Sprint(movie.ID)})

	if resp.Location != "/uploader/manage" {
		t.Fatalf("Location = %q", resp.Location)
	}
	flash, _ := sess.GetFlash("manage_message")
	if flash.Message != "Unauthorized access: You can only delete your own movies." {
		t.Errorf("flash message = %q", flash.Message)
	}
	if store.MovieCount() != 1 {
		t.Error("movie deleted by a non-owner")
	}
}
