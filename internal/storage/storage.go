package storage

import (
	"errors"

	"github.com/movieflix/movieflix-service/internal/types"
)

var (
	// ErrNotFound is returned when a user or movie does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique constraint (username, email)
	// would be violated.
	ErrDuplicate = errors.New("record already exists")
)

type Storage interface {
	CreateUser(username, email, passwordHash string, role types.Role) (int64, error)
	GetUserByIdentifier(identifier string) (types.User, error)
	GetUserByID(id int64) (types.User, error)
	ListUsers() ([]types.User, error)
	UpdateUser(id int64, username, email string, role types.Role) error
	DeleteUser(id int64) error

	CreateMovie(m types.Movie) (int64, error)
	GetMovieByID(id int64) (types.Movie, error)
	ListMovies() ([]types.Movie, error)
	ListMoviesByUploader(uploaderID int64) ([]types.Movie, error)
	SearchMovies(query string) ([]types.Movie, error)
	UpdateMovie(m types.Movie) error
	DeleteMovie(id int64) error
}
