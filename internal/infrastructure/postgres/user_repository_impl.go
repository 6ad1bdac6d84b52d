package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/delivio/user-service/internal/domain/entity"
	"github.com/delivio/user-service/internal/domain/repository"
)

const userColumns = `id, username, email, password, phone_number, name, location, role, joined_at`

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) FindByID(ctx context.Context, id int64) (*entity.User, error) {
	return r.findBy(ctx, "id = $1", id)
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*entity.User, error) {
	return r.findBy(ctx, "username = $1", username)
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	return r.findBy(ctx, "email = $1", email)
}

func (r *UserRepository) findBy(ctx context.Context, where string, arg any) (*entity.User, error) {
	u := &entity.User{}
	row := r.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE `+where, arg)

	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.Password, &u.PhoneNumber,
		&u.Name, &u.Location, &u.Role, &u.JoinedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return u, nil
}

func (r *UserRepository) Create(ctx context.Context, u *entity.User) error {
	if u.Role == "" {
		u.Role = entity.RoleStandard
	}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO users (username, email, password, phone_number, name, location, role)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, joined_at
	`, u.Username, u.Email, u.Password, u.PhoneNumber, u.Name, u.Location, u.Role)

	if err := row.Scan(&u.ID, &u.JoinedAt); err != nil {
		return translateConflict(err)
	}
	return nil
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	res, err := r.pool.Exec(ctx, `
		UPDATE users SET password = $1 WHERE id = $2
	`, passwordHash, id)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *UserRepository) UpdateProfile(ctx context.Context, id int64, name, phoneNumber, location string) (*entity.User, error) {
	u := &entity.User{}
	row := r.pool.QueryRow(ctx, `
		UPDATE users
		SET name = $1, phone_number = $2, location = $3
		WHERE id = $4
		RETURNING `+userColumns, name, phoneNumber, location, id)

	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.Password, &u.PhoneNumber,
		&u.Name, &u.Location, &u.Role, &u.JoinedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return u, nil
}

// translateConflict maps a unique-violation from the schema's constraints on
// username and email to repository.ErrConflict.
func translateConflict(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return repository.ErrConflict
	}
	return err
}

var _ repository.UserRepository = (*UserRepository)(nil)
