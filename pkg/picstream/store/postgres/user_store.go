package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kavichu/picstream/pkg/picstream"
)

// UserStore implements picstream.UserStore on a PostgreSQL table.
type UserStore struct {
	db    DBTX
	table string
}

// NewUserStore creates a user store over the named table.
func NewUserStore(db DBTX, table string) (*UserStore, error) {
	if !identPattern.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &UserStore{db: db, table: table}, nil
}

// NewUserStoreWithPool creates a user store backed by a connection pool.
func NewUserStoreWithPool(pool *pgxpool.Pool, table string) (*UserStore, error) {
	return NewUserStore(pool, table)
}

// Migrate creates the users table if it does not exist.
func (s *UserStore) Migrate(ctx context.Context) error {
	ddl := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id         text PRIMARY KEY,
			email      text NOT NULL DEFAULT '',
			created_at timestamptz NOT NULL
		)`, s.table)

	if _, err := s.db.Exec(ctx, ddl); err != nil {
		return mapError("migrate", err)
	}
	return nil
}

func (s *UserStore) CreateUser(ctx context.Context, user *picstream.User) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, email, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO NOTHING`, s.table)

	tag, err := s.db.Exec(ctx, query, user.ID, user.Email, user.CreatedAt)
	if err != nil {
		return mapError("create_user", err)
	}
	if tag.RowsAffected() == 0 {
		return picstream.ErrAlreadyExists
	}

	return nil
}

func (s *UserStore) GetUser(ctx context.Context, id string) (*picstream.User, error) {
	query := fmt.Sprintf(`SELECT id, email, created_at FROM %s WHERE id = $1`, s.table)

	var user picstream.User
	err := s.db.QueryRow(ctx, query, id).Scan(&user.ID, &user.Email, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, picstream.ErrUserNotFound
		}
		return nil, mapError("get_user", err)
	}

	return &user, nil
}
