package public

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/movieflix/movieflix-service/internal/http/handlers"
	"github.com/movieflix/movieflix-service/internal/router"
	"github.com/movieflix/movieflix-service/internal/session"
	"github.com/movieflix/movieflix-service/internal/storage"
	"github.com/movieflix/movieflix-service/internal/web/response"
)

// Home lists the whole catalog, newest uploads first.
func Home(store storage.Storage) router.HandlerFunc {
	return func(r *http.Request, sess *session.Session, params []string) response.Response {
		movies, err := store.ListMovies()
		if err != nil {
			slog.Error("failed to list movies", "error", err.Error())
			return response.ServerError()
		}

		data := handlers.PageData(sess, "error")
		data["Movies"] = movies
		return response.Render("home", data)
	}
}

// Details shows one movie. An unknown or malformed id gets the dedicated
// not-found page rather than a redirect.
func Details(store storage.Storage) router.HandlerFunc {
	return func(r *http.Request, sess *session.Session, params []string) response.Response {
		id, err := strconv.ParseInt(params[0], 10, 64)
		if err != nil {
			return response.NotFound()
		}

		movie, err := store.GetMovieByID(id)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return response.NotFound()
			}
			slog.Error("failed to load movie", "id", id, "error", err.Error())
			return response.ServerError()
		}

		data := handlers.PageData(sess)
		data["Movie"] = movie
		return response.Render("movie_details", data)
	}
}

// Search matches the query against title, description, genre and director.
// An empty query renders an empty result page.
func Search(store storage.Storage) router.HandlerFunc {
	return func(r *http.Request, sess *session.Session, params []string) response.Response {
		query := r.URL.Query().Get("query")

		data := handlers.PageData(sess)
		data["Query"] = query

		if query == "" {
			data["Results"] = nil
			return response.Render("search_results", data)
		}

		movies, err := store.SearchMovies(query)
		if err != nil {
			slog.Error("failed to search movies", "query", query, "error", err.Error())
			return response.ServerError()
		}

		data["Results"] = movies
		return response.Render("search_results", data)
	}
}
