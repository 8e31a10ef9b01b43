package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/DEEKSHA240406/stress-management-sub001/internal/models"
)

// poolIface is the subset of *pgxpool.Pool the store needs. pgxmock
// satisfies it in tests.
type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

const pgUserColumns = "id, username, name, role, password_hash, created_at, updated_at"

// PostgresStore keeps users in PostgreSQL.
type PostgresStore struct {
	pool poolIface
}

// NewPostgresStore creates a store over pool.
func NewPostgresStore(pool poolIface) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) FindByUsername(ctx context.Context, username string) (models.User, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+pgUserColumns+` FROM users WHERE username = $1`, username)
	return scanPgUser(row)
}

func (s *PostgresStore) FindByID(ctx context.Context, id string) (models.User, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+pgUserColumns+` FROM users WHERE id = $1`, id)
	return scanPgUser(row)
}

func (s *PostgresStore) InsertIfAbsent(ctx context.Context, user models.User) error {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO users (`+pgUserColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (username) DO NOTHING`,
		user.ID, user.Username, user.Name, user.Role, user.PasswordHash, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		// A colliding primary key is reported as a unique violation too.
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicate
		}
		return fmt.Errorf("insert user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDuplicate
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context) ([]models.User, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+pgUserColumns+` FROM users ORDER BY created_at, username`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		user, err := scanPgUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func scanPgUser(row pgx.Row) (models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Username, &u.Name, &u.Role, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.User{}, ErrNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("scan user: %w", err)
	}
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return u, nil
}
