// Package store persists user records. Every backend enforces username
// uniqueness with an atomic check-and-insert.
package store

import (
	"context"
	"errors"

	"github.com/DEEKSHA240406/stress-management-sub001/internal/models"
)

var (
	// ErrNotFound is returned when no record matches the lookup.
	ErrNotFound = errors.New("store: not found")
	// ErrDuplicate is returned by InsertIfAbsent when the username is taken.
	ErrDuplicate = errors.New("store: duplicate username")
)

// UserStore is the persistence boundary of the authenticator.
type UserStore interface {
	FindByUsername(ctx context.Context, username string) (models.User, error)
	FindByID(ctx context.Context, id string) (models.User, error)
	// InsertIfAbsent stores user unless its username already exists, in which
	// case it returns ErrDuplicate. The check and the insert are atomic.
	InsertIfAbsent(ctx context.Context, user models.User) error
	// List returns all users ordered by creation time.
	List(ctx context.Context) ([]models.User, error)
	Count(ctx context.Context) (int, error)
	Ping(ctx context.Context) error
	Close() error
}
