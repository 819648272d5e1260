package users

import "context"

// Repository abstracts user persistence for the service.
//
// CreateUser must rely on the store's uniqueness constraint and return
// ErrUsernameTaken when the username already exists, so that two concurrent
// registrations cannot both succeed. Lookups return ErrUserNotFound when no
// row matches.
type Repository interface {
	CreateUser(ctx context.Context, username, passwordHash string) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	GetUserByID(ctx context.Context, id int64) (*User, error)
}
