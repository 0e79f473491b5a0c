package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/movieflix/movieflix-service/internal/storage"
	"github.com/movieflix/movieflix-service/internal/types"
)

// Cache key patterns.
const (
	catalogKey = "catalog:all"
	movieKey   = "catalog:movie:%d"
)

// Cache durations. The catalog backs the homepage, so it stays hot but
// short-lived; single movies change rarely and can live longer.
const (
	catalogCacheDuration = 30 * time.Second
	movieCacheDuration   = 5 * time.Minute
)

// Catalog wraps a Storage with redis caching for the read paths every
// visitor hits. Writes pass through and invalidate the affected keys, so
// readers never see a deleted movie for longer than the catalog TTL.
type Catalog struct {
	storage storage.Storage
	redis   *redis.Client
}

func NewCatalog(store storage.Storage, redisClient *redis.Client) *Catalog {
	return &Catalog{
		storage: store,
		redis:   redisClient,
	}
}

// ListMovies returns the cached catalog, falling back to storage on a miss.
func (c *Catalog) ListMovies() ([]types.Movie, error) {
	ctx := context.Background()

	cached, err := c.redis.Get(ctx, catalogKey).Result()
	if err == nil {
		var movies []types.Movie
		if err := json.Unmarshal([]byte(cached), &movies); err == nil {
			return movies, nil
		}
	}

	movies, err := c.storage.ListMovies()
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(movies); err == nil {
		c.redis.Set(ctx, catalogKey, data, catalogCacheDuration)
	}
	return movies, nil
}

// GetMovieByID returns the cached movie, falling back to storage on a miss.
func (c *Catalog) GetMovieByID(id int64) (types.Movie, error) {
	ctx := context.Background()
	key := fmt.Sprintf(movieKey, id)

	cached, err := c.redis.Get(ctx, key).Result()
	if err == nil {
		var movie types.Movie
		if err := json.Unmarshal([]byte(cached), &movie); err == nil {
			return movie, nil
		}
	}

	movie, err := c.storage.GetMovieByID(id)
	if err != nil {
		return movie, err
	}

	if data, err := json.Marshal(movie); err == nil {
		c.redis.Set(ctx, key, data, movieCacheDuration)
	}
	return movie, nil
}

func (c *Catalog) invalidateCatalog(movieIDs ...int64) {
	ctx := context.Background()
	keys := []string{catalogKey}
	for _, id := range movieIDs {
		keys = append(keys, fmt.Sprintf(movieKey, id))
	}
	c.redis.Del(ctx, keys...)
}

func (c *Catalog) CreateMovie(m types.Movie) (int64, error) {
	id, err := c.storage.CreateMovie(m)
	if err != nil {
		return 0, err
	}
	c.invalidateCatalog()
	return id, nil
}

func (c *Catalog) UpdateMovie(m types.Movie) error {
	if err := c.storage.UpdateMovie(m); err != nil {
		return err
	}
	c.invalidateCatalog(m.ID)
	return nil
}

func (c *Catalog) DeleteMovie(id int64) error {
	if err := c.storage.DeleteMovie(id); err != nil {
		return err
	}
	c.invalidateCatalog(id)
	return nil
}

// DeleteUser cascades to the user's movies, so their cache entries go too.
func (c *Catalog) DeleteUser(id int64) error {
	movies, err := c.storage.ListMoviesByUploader(id)
	if err != nil {
		return err
	}
	if err := c.storage.DeleteUser(id); err != nil {
		return err
	}

	ids := make([]int64, len(movies))
	for i, m := range movies {
		ids[i] = m.ID
	}
	c.invalidateCatalog(ids...)
	return nil
}

// Uncached pass-throughs. Search results and per-uploader listings are too
// varied to be worth caching, and user reads always want fresh rows.

func (c *Catalog) CreateUser(username, email, passwordHash string, role types.Role) (int64, error) {
	return c.storage.CreateUser(username, email, passwordHash, role)
}

func (c *Catalog) GetUserByIdentifier(identifier string) (types.User, error) {
	return c.storage.GetUserByIdentifier(identifier)
}

func (c *Catalog) GetUserByID(id int64) (types.User, error) {
	return c.storage.GetUserByID(id)
}

func (c *Catalog) ListUsers() ([]types.User, error) {
	return c.storage.ListUsers()
}

func (c *Catalog) UpdateUser(id int64, username, email string, role types.Role) error {
	return c.storage.UpdateUser(id, username, email, role)
}

func (c *Catalog) ListMoviesByUploader(uploaderID int64) ([]types.Movie, error) {
	return c.storage.ListMoviesByUploader(uploaderID)
}

func (c *Catalog) SearchMovies(query string) ([]types.Movie, error) {
	return c.storage.SearchMovies(query)
}
