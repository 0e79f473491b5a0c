package types

import "time"

// Role is the closed set of user roles. There is no hierarchy: an admin
// does not implicitly satisfy a check for uploader.
type Role string

const (
	RoleUser     Role = "user"
	RoleUploader Role = "uploader"
	RoleAdmin    Role = "admin"
)

// DefaultRole is assigned to every new registration.
const DefaultRole = RoleUser

func ValidRole(r string) bool {
	switch Role(r) {
	case RoleUser, RoleUploader, RoleAdmin:
		return true
	}
	return false
}

type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
}

type Movie struct {
	ID          int64
	Title       string
	Description string
	ReleaseYear int
	Director    string
	Genre       string
	Duration    int // minutes
	PosterPath  string
	VideoPath   string
	UploaderID  int64
	CreatedAt   time.Time
}

type RegisterForm struct {
	Username        string `validate:"required"`
	Email           string `validate:"required,email"`
	Password        string `validate:"required,min=6"`
	ConfirmPassword string `validate:"required,eqfield=Password"`
}

type LoginForm struct {
	Identifier string `validate:"required"` // username or email
	Password   string `validate:"required"`
}

// MovieForm carries the text fields of the upload and edit forms.
// Director is optional, matching the upload form.
type MovieForm struct {
	Title       string `validate:"required"`
	Description string `validate:"required"`
	ReleaseYear int    `validate:"required,gte=1888,lte=2100"`
	Director    string
	Genre       string `validate:"required"`
	Duration    int    `validate:"required,gte=1,lte=600"`
}

type UserEditForm struct {
	Username string `validate:"required"`
	Email    string `validate:"required,email"`
	Role     string `validate:"required,oneof=user uploader admin"`
}
