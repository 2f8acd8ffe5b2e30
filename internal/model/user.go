package model

import (
	"errors"
	"time"
)

// UnknownOwnerName is shown for authors that can no longer be resolved.
const UnknownOwnerName = "[deleted]"

// User represents a user in the system.
// Followers and Following are filled from the follow graph, not the users row.
type User struct {
	ID             string    `db:"id" json:"id"`
	Name           string    `db:"name" json:"name"`
	Email          string    `db:"email" json:"email"`
	PasswordHashed string    `db:"password_hashed" json:"-"`
	Bio            *string   `db:"bio" json:"bio"`
	Followers      []string  `db:"-" json:"followers"`
	Following      []string  `db:"-" json:"following"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// Summary returns the public owner projection of the user.
func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Name: u.Name}
}

// UserSummary is the owner projection embedded in every view.
type UserSummary struct {
	ID   string `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// UnknownOwner is the degraded summary used when an owner lookup misses.
func UnknownOwner(id string) UserSummary {
	return UserSummary{ID: id, Name: UnknownOwnerName}
}

// ProfileResponse is a user together with resolved follower lists.
type ProfileResponse struct {
	User      *User         `json:"user"`
	Followers []UserSummary `json:"followers"`
	Following []UserSummary `json:"following"`
}

// RegisterRequest represents the data needed to register a new user
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignInRequest represents the data needed to sign in
type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UpdateProfileRequest replaces the editable profile fields.
type UpdateProfileRequest struct {
	Name string  `json:"name"`
	Bio  *string `json:"bio"`
}

// AuthResponse is returned after register and sign-in.
type AuthResponse struct {
	User        *User  `json:"user"`
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// Token API error codes (used in HTTP responses)
const (
	CodeTokenExpired = "TOKEN_EXPIRED"
	CodeTokenInvalid = "TOKEN_INVALID"
)

// User constraints
const (
	MaxNameLength     = 64
	MaxBioLength      = 500
	MinPasswordLength = 6
)

var (
	// ErrUserNotFound is returned when a user cannot be found
	ErrUserNotFound = errors.New("user not found")

	// ErrEmailExists is returned when attempting to register a taken email
	ErrEmailExists = errors.New("email already registered")

	// ErrInvalidCredentials is returned when sign-in credentials are incorrect
	ErrInvalidCredentials = errors.New("invalid credentials")

	ErrNameRequired     = errors.New("name is required")
	ErrNameTooLong      = errors.New("name too long")
	ErrBioTooLong       = errors.New("bio too long")
	ErrEmailRequired    = errors.New("email is required")
	ErrEmailInvalid     = errors.New("email is invalid")
	ErrPasswordTooShort = errors.New("password too short")
)
