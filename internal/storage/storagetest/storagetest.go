// Package storagetest provides an in-memory Storage implementation for
// handler tests.
package storagetest

import (
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/movieflix/movieflix-service/internal/storage"
	"github.com/movieflix/movieflix-service/internal/types"
)

type Fake struct {
	mu        sync.Mutex
	users     map[int64]types.User
	movies    map[int64]types.Movie
	nextUser  int64
	nextMovie int64

	// FailCreateMovie forces CreateMovie to report a storage failure,
	// for exercising upload rollback paths.
	FailCreateMovie bool
}

var errForced = errors.New("forced storage failure")

func New() *Fake {
	return &Fake{
		users:     make(map[int64]types.User),
		movies:    make(map[int64]types.Movie),
		nextUser:  1,
		nextMovie: 1,
	}
}

func (f *Fake) CreateUser(username, email, passwordHash string, role types.Role) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, u := range f.users {
		if u.Username == username || u.Email == email {
			return 0, storage.ErrDuplicate
		}
	}

	id := f.nextUser
	f.nextUser++
	f.users[id] = types.User{
		ID:           id,
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         role,
	}
	return id, nil
}

func (f *Fake) GetUserByIdentifier(identifier string) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, u := range f.users {
		if u.Username == identifier || u.Email == identifier {
			return u, nil
		}
	}
	return types.User{}, storage.ErrNotFound
}

func (f *Fake) GetUserByID(id int64) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	u, ok := f.users[id]
	if !ok {
		return types.User{}, storage.ErrNotFound
	}
	return u, nil
}

func (f *Fake) ListUsers() ([]types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	users := make([]types.User, 0, len(f.users))
	for _, u := range f.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (f *Fake) UpdateUser(id int64, username, email string, role types.Role) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	u, ok := f.users[id]
	if !ok {
		return storage.ErrNotFound
	}
	for _, other := range f.users {
		if other.ID == id {
			continue
		}
		if other.Username == username || other.Email == email {
			return storage.ErrDuplicate
		}
	}
	u.Username = username
	u.Email = email
	u.Role = role
	f.users[id] = u
	return nil
}

func (f *Fake) DeleteUser(id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.users[id]; !ok {
		return storage.ErrNotFound
	}
	delete(f.users, id)
	// Mirrors the ON DELETE CASCADE on movies.uploader_id.
	for mid, m := range f.movies {
		if m.UploaderID == id {
			delete(f.movies, mid)
		}
	}
	return nil
}

func (f *Fake) CreateMovie(m types.Movie) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.FailCreateMovie {
		return 0, errForced
	}

	id := f.nextMovie
	f.nextMovie++
	m.ID = id
	f.movies[id] = m
	return id, nil
}

func (f *Fake) GetMovieByID(id int64) (types.Movie, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	m, ok := f.movies[id]
	if !ok {
		return types.Movie{}, storage.ErrNotFound
	}
	return m, nil
}

func (f *Fake) ListMovies() ([]types.Movie, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	movies := make([]types.Movie, 0, len(f.movies))
	for _, m := range f.movies {
		movies = append(movies, m)
	}
	sort.Slice(movies, func(i, j int) bool { return movies[i].ID > movies[j].ID })
	return movies, nil
}

func (f *Fake) ListMoviesByUploader(uploaderID int64) ([]types.Movie, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var movies []types.Movie
	for _, m := range f.movies {
		if m.UploaderID == uploaderID {
			movies = append(movies, m)
		}
	}
	sort.Slice(movies, func(i, j int) bool { return movies[i].ID > movies[j].ID })
	return movies, nil
}

func (f *Fake) SearchMovies(query string) ([]types.Movie, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	q := strings.ToLower(query)
	var movies []types.Movie
	for _, m := range f.movies {
		haystack := strings.ToLower(m.Title + " " + m.Description + " " + m.Genre + " " + m.Director)
		if strings.Contains(haystack, q) {
			movies = append(movies, m)
		}
	}
	sort.Slice(movies, func(i, j int) bool { return movies[i].Title < movies[j].Title })
	return movies, nil
}

func (f *Fake) UpdateMovie(m types.Movie) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.movies[m.ID]; !ok {
		return storage.ErrNotFound
	}
	f.movies[m.ID] = m
	return nil
}

func (f *Fake) DeleteMovie(id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.movies[id]; !ok {
		return storage.ErrNotFound
	}
	delete(f.movies, id)
	return nil
}

// MovieCount reports how many movie rows exist.
func (f *Fake) MovieCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.movies)
}

// UserCount reports how many user rows exist.
func (f *Fake) UserCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.users)
}
