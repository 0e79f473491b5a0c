package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/lib/pq"
	"github.com/movieflix/movieflix-service/internal/config"
	"github.com/movieflix/movieflix-service/internal/storage"
	"github.com/movieflix/movieflix-service/internal/types"
)

// uniqueViolation is the Postgres error code for a unique constraint breach.
const uniqueViolation = "23505"

type Postgres struct {
	Db *sql.DB
}

func NewPostgres(cfg *config.Config) (*Postgres, error) {
	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.PGSQL.Host, cfg.PGSQL.Port, cfg.PGSQL.User, cfg.PGSQL.Password, cfg.PGSQL.DBName, cfg.PGSQL.SSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	err = db.Ping()
	if err != nil {
		return nil, err
	}

	log.Println("Connected to Postgres database")

	pg := &Postgres{Db: db}
	if err := pg.CreateTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return pg, nil
}

func (p *Postgres) CreateTables() error {
	queries := []string{
		`
		CREATE TABLE IF NOT EXISTS users (
			id SERIAL PRIMARY KEY,
			username VARCHAR(255) UNIQUE NOT NULL,
			email VARCHAR(255) UNIQUE NOT NULL,
			password TEXT NOT NULL,
			role VARCHAR(50) NOT NULL DEFAULT 'user' CHECK (role IN ('user', 'uploader', 'admin')),
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
		`,
		`
		CREATE TABLE IF NOT EXISTS movies (
			id SERIAL PRIMARY KEY,
			title VARCHAR(255) NOT NULL,
			description TEXT NOT NULL,
			release_year INTEGER NOT NULL,
			director VARCHAR(255),
			genre VARCHAR(100) NOT NULL,
			duration INTEGER NOT NULL,
			poster_path VARCHAR(512) NOT NULL,
			video_path VARCHAR(512) NOT NULL,
			uploader_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
		`,
	}

	for _, q := range queries {
		if _, err := p.Db.Exec(q); err != nil {
			return err
		}
	}

	return nil
}

// mapErr converts driver-level errors into the storage sentinel errors.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
		return storage.ErrDuplicate
	}
	return err
}

func (p *Postgres) CreateUser(username, email, passwordHash string, role types.Role) (int64, error) {
	var userID int64
	query := `
	INSERT INTO users (username, email, password, role)
	VALUES ($1, $2, $3, $4)
	RETURNING id
	`

	err := p.Db.QueryRow(query, username, email, passwordHash, role).Scan(&userID)
	if err != nil {
		return 0, mapErr(err)
	}

	return userID, nil
}

func (p *Postgres) GetUserByIdentifier(identifier string) (types.User, error) {
	query := `
	SELECT id, username, email, password, role, created_at FROM users
	WHERE username = $1 OR email = $1
	`

	var u types.User
	err := p.Db.QueryRow(query, identifier).Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt)
	if err != nil {
		return types.User{}, mapErr(err)
	}

	return u, nil
}

func (p *Postgres) GetUserByID(id int64) (types.User, error) {
	query := `
	SELECT id, username, email, password, role, created_at FROM users WHERE id = $1
	`

	var u types.User
	err := p.Db.QueryRow(query, id).Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt)
	if err != nil {
		return types.User{}, mapErr(err)
	}

	return u, nil
}

func (p *Postgres) ListUsers() ([]types.User, error) {
	// Password hash is deliberately not selected here.
	query := `
	SELECT id, username, email, role, created_at FROM users ORDER BY id ASC
	`

	rows, err := p.Db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []types.User
	for rows.Next() {
		var u types.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.Role, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}

	return users, rows.Err()
}

func (p *Postgres) UpdateUser(id int64, username, email string, role types.Role) error {
	query := `
	UPDATE users SET username = $1, email = $2, role = $3 WHERE id = $4
	`

	res, err := p.Db.Exec(query, username, email, role, id)
	if err != nil {
		return mapErr(err)
	}
	return checkAffected(res)
}

func (p *Postgres) DeleteUser(id int64) error {
	res, err := p.Db.Exec(`DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

func (p *Postgres) CreateMovie(m types.Movie) (int64, error) {
	var movieID int64
	query := `
	INSERT INTO movies (title, description, release_year, director, genre, duration, poster_path, video_path, uploader_id)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	RETURNING id
	`

	err := p.Db.QueryRow(query, m.Title, m.Description, m.ReleaseYear, m.Director, m.Genre,
		m.Duration, m.PosterPath, m.VideoPath, m.UploaderID).Scan(&movieID)
	if err != nil {
		return 0, mapErr(err)
	}

	return movieID, nil
}

const movieColumns = `id, title, description, release_year, director, genre, duration, poster_path, video_path, uploader_id, created_at`

func scanMovie(row *sql.Row) (types.Movie, error) {
	var m types.Movie
	err := row.Scan(&m.ID, &m.Title, &m.Description, &m.ReleaseYear, &m.Director, &m.Genre,
		&m.Duration, &m.PosterPath, &m.VideoPath, &m.UploaderID, &m.CreatedAt)
	if err != nil {
		return types.Movie{}, mapErr(err)
	}
	return m, nil
}

func collectMovies(rows *sql.Rows) ([]types.Movie, error) {
	defer rows.Close()

	var movies []types.Movie
	for rows.Next() {
		var m types.Movie
		if err := rows.Scan(&m.ID, &m.Title, &m.Description, &m.ReleaseYear, &m.Director, &m.Genre,
			&m.Duration, &m.PosterPath, &m.VideoPath, &m.UploaderID, &m.CreatedAt); err != nil {
			return nil, err
		}
		movies = append(movies, m)
	}

	return movies, rows.Err()
}

func (p *Postgres) GetMovieByID(id int64) (types.Movie, error) {
	query := `SELECT ` + movieColumns + ` FROM movies WHERE id = $1`
	return scanMovie(p.Db.QueryRow(query, id))
}

func (p *Postgres) ListMovies() ([]types.Movie, error) {
	query := `SELECT ` + movieColumns + ` FROM movies ORDER BY created_at DESC`
	rows, err := p.Db.Query(query)
	if err != nil {
		return nil, err
	}
	return collectMovies(rows)
}

func (p *Postgres) ListMoviesByUploader(uploaderID int64) ([]types.Movie, error) {
	query := `SELECT ` + movieColumns + ` FROM movies WHERE uploader_id = $1 ORDER BY created_at DESC`
	rows, err := p.Db.Query(query, uploaderID)
	if err != nil {
		return nil, err
	}
	return collectMovies(rows)
}

func (p *Postgres) SearchMovies(query string) ([]types.Movie, error) {
	likeQuery := "%" + query + "%"
	q := `SELECT ` + movieColumns + ` FROM movies
	WHERE title ILIKE $1 OR description ILIKE $1 OR genre ILIKE $1 OR director ILIKE $1
	ORDER BY title ASC`

	rows, err := p.Db.Query(q, likeQuery)
	if err != nil {
		return nil, err
	}
	return collectMovies(rows)
}

func (p *Postgres) UpdateMovie(m types.Movie) error {
	query := `
	UPDATE movies SET title = $1, description = $2, release_year = $3, director = $4,
		genre = $5, duration = $6, poster_path = $7, video_path = $8
	WHERE id = $9
	`

	res, err := p.Db.Exec(query, m.Title, m.Description, m.ReleaseYear, m.Director,
		m.Genre, m.Duration, m.PosterPath, m.VideoPath, m.ID)
	if err != nil {
		return mapErr(err)
	}
	return checkAffected(res)
}

func (p *Postgres) DeleteMovie(id int64) error {
	res, err := p.Db.Exec(`DELETE FROM movies WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

func checkAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}
