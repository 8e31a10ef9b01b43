package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/DEEKSHA240406/stress-management-sub001/internal/models"
)

const sqliteUserColumns = "id, username, name, role, password_hash, created_at, updated_at"

// SQLiteStore keeps users in a SQLite database migrated by package database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore wraps an open database handle.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) FindByUsername(ctx context.Context, username string) (models.User, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+sqliteUserColumns+" FROM users WHERE username = ?", username)
	return scanSQLUser(row)
}

func (s *SQLiteStore) FindByID(ctx context.Context, id string) (models.User, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+sqliteUserColumns+" FROM users WHERE id = ?", id)
	return scanSQLUser(row)
}

func (s *SQLiteStore) InsertIfAbsent(ctx context.Context, user models.User) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (`+sqliteUserColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(username) DO NOTHING`,
		user.ID, user.Username, user.Name, user.Role, user.PasswordHash,
		user.CreatedAt.UTC(), user.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	if n == 0 {
		return ErrDuplicate
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+sqliteUserColumns+" FROM users ORDER BY created_at, username")
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		user, err := scanSQLUser(rows)
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

func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLUser(row rowScanner) (models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Username, &u.Name, &u.Role, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("scan user: %w", err)
	}
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return u, nil
}
