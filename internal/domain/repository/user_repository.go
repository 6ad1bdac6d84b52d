package repository

import (
	"context"
	"errors"

	"github.com/delivio/user-service/internal/domain/entity"
)

var (
	// ErrNotFound is returned when no row matches the lookup.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when an insert would violate a uniqueness
	// constraint (username or email).
	ErrConflict = errors.New("conflict")
)

// UserRepository defines single-row, field-equality access to user records.
type UserRepository interface {
	FindByID(ctx context.Context, id int64) (*entity.User, error)
	FindByUsername(ctx context.Context, username string) (*entity.User, error)
	FindByEmail(ctx context.Context, email string) (*entity.User, error)
	// Create inserts u and fills ID and JoinedAt from the stored row.
	Create(ctx context.Context, u *entity.User) error
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
	UpdateProfile(ctx context.Context, id int64, name, phoneNumber, location string) (*entity.User, error)
}
