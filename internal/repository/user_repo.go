package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"habittracker/internal/model"
	"habittracker/pkg/util"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UserRepository struct {
	db *pgxpool.Pool
}

func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

// CreateUser inserts a new user; a taken email yields model.ErrEmailTaken.
func (r *UserRepository) CreateUser(ctx context.Context, u *model.User) error {
	defer observe("insert", "users", time.Now())

	query := `
        INSERT INTO users (email, display_name, password_hash, created_at)
        VALUES ($1, $2, $3, $4)
        RETURNING id
    `
	err := userInsertError(r.db.QueryRow(ctx, query, u.Email, u.DisplayName, u.PasswordHash, u.CreatedAt).Scan(&u.ID))
	if errors.Is(err, model.ErrEmailTaken) {
		return err
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func userInsertError(err error) error {
	if util.IsUniqueViolation(err) {
		return model.ErrEmailTaken
	}
	return err
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	defer observe("select", "users", time.Now())

	query := `
        SELECT id, email, display_name, password_hash, created_at
        FROM users
        WHERE email = $1
    `
	var u model.User
	err := r.db.QueryRow(ctx, query, email).Scan(
		&u.ID, &u.Email, &u.DisplayName, &u.PasswordHash, &u.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &u, nil
}
