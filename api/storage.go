package main

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/lib/pq"
)

const queryTimeout = 5 * time.Second

var errDuplicateEmail = errors.New("a user with this email address already exists")

func openDB(cfg config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.db.dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.db.maxOpenConnections)
	db.SetMaxIdleConns(cfg.db.maxIdleConnections)
	db.SetConnMaxIdleTime(cfg.db.maxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	err = db.PingContext(ctx)
	if err != nil {
		return nil, err
	}

	return db, nil
}

// storage is the persistence boundary. Handlers only see this interface;
// tests substitute an in-memory implementation.
type storage interface {
	getUserByEmail(ctx context.Context, email string) (*user, error)
	getUserByID(ctx context.Context, id int) (*user, error)
	insertUser(ctx context.Context, u *user) error
	updateUser(ctx context.Context, u *user) error

	insertTodo(ctx context.Context, t *todo) error
	getTodoByID(ctx context.Context, id, userID int) (*todo, error)
	getTodos(ctx context.Context, userID int, search string, limit, offset int) ([]todo, int, error)
	updateTodo(ctx context.Context, t *todo) error
	deleteTodo(ctx context.Context, id, userID int) (bool, error)
}

type sqlStorage struct {
	db *sql.DB
}

func newStorage(db *sql.DB) *sqlStorage {
	return &sqlStorage{db: db}
}

func (s *sqlStorage) getUserByEmail(ctx context.Context, email string) (*user, error) {
	query := `SELECT id, created_at, updated_at, name, email, password_hash, version
			  FROM users
			  WHERE email = $1`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	row := s.db.QueryRowContext(ctx, query, email)
	var u user
	err := row.Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt, &u.Name, &u.Email, &u.PasswordHash, &u.Version)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, nil
		default:
			return nil, err
		}
	}
	return &u, nil
}

func (s *sqlStorage) getUserByID(ctx context.Context, id int) (*user, error) {
	query := `SELECT id, created_at, updated_at, name, email, password_hash, version
			  FROM users
			  WHERE id = $1`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	row := s.db.QueryRowContext(ctx, query, id)
	var u user
	err := row.Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt, &u.Name, &u.Email, &u.PasswordHash, &u.Version)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, nil
		default:
			return nil, err
		}
	}
	return &u, nil
}

func (s *sqlStorage) insertUser(ctx context.Context, u *user) error {
	query := `INSERT INTO users (name, email, password_hash)
			  VALUES ($1, $2, $3)
			  RETURNING id, created_at, updated_at, version`

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	row := s.db.QueryRowContext(ctx, query, u.Name, u.Email, u.PasswordHash)
	err := row.Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt, &u.Version)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
		return errDuplicateEmail
	}
	return err
}

func (s *sqlStorage) updateUser(ctx context.Context, u *user) error {
	query := `UPDATE users SET name = $1, email = $2, updated_at = now(), version = version + 1
			  WHERE id = $3 AND version = $4
			  RETURNING updated_at, version`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	row := s.db.QueryRowContext(ctx, query, u.Name, u.Email, u.ID, u.Version)
	err := row.Scan(&u.UpdatedAt, &u.Version)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
		return errDuplicateEmail
	}
	return err
}

func (s *sqlStorage) insertTodo(ctx context.Context, t *todo) error {
	query := `INSERT INTO todos (user_id, title, is_completed)
			  VALUES ($1, $2, $3)
			  RETURNING id, created_at, updated_at, version`

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	row := s.db.QueryRowContext(ctx, query, t.UserID, t.Title, t.IsCompleted)
	return row.Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt, &t.Version)
}

func (s *sqlStorage) getTodoByID(ctx context.Context, id, userID int) (*todo, error) {
	query := `SELECT id, created_at, updated_at, user_id, title, is_completed, version
			  FROM todos
			  WHERE id = $1 AND user_id = $2`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	row := s.db.QueryRowContext(ctx, query, id, userID)
	var t todo
	err := row.Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt, &t.UserID, &t.Title, &t.IsCompleted, &t.Version)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, nil
		default:
			return nil, err
		}
	}
	return &t, nil
}

// getTodos returns one page of the user's todos plus the total match count.
// Results are ordered by creation time (id as tie-break) so pagination is
// stable across requests.
func (s *sqlStorage) getTodos(ctx context.Context, userID int, search string, limit, offset int) ([]todo, int, error) {
	pattern := "%" + escapeLikePattern(search) + "%"

	countQuery := `SELECT count(*) FROM todos
				   WHERE user_id = $1 AND title ILIKE $2`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var total int
	err := s.db.QueryRowContext(ctx, countQuery, userID, pattern).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	query := `SELECT id, created_at, updated_at, user_id, title, is_completed, version
			  FROM todos
			  WHERE user_id = $1 AND title ILIKE $2
			  ORDER BY created_at, id
			  LIMIT $3 OFFSET $4`
	rows, err := s.db.QueryContext(ctx, query, userID, pattern, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	todos := []todo{}
	for rows.Next() {
		var t todo
		err := rows.Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt, &t.UserID, &t.Title, &t.IsCompleted, &t.Version)
		if err != nil {
			return nil, 0, err
		}
		todos = append(todos, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return todos, total, nil
}

func (s *sqlStorage) updateTodo(ctx context.Context, t *todo) error {
	query := `UPDATE todos SET title = $1, is_completed = $2, updated_at = now(), version = version + 1
			  WHERE id = $3 AND user_id = $4 AND version = $5
			  RETURNING updated_at, version`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	row := s.db.QueryRowContext(ctx, query, t.Title, t.IsCompleted, t.ID, t.UserID, t.Version)
	return row.Scan(&t.UpdatedAt, &t.Version)
}

func (s *sqlStorage) deleteTodo(ctx context.Context, id, userID int) (bool, error) {
	query := `DELETE FROM todos
			  WHERE id = $1 AND user_id = $2`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	res, err := s.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// isNoRows reports whether a write hit no matching row, which happens when
// the record disappeared or its version moved under us.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// escapeLikePattern neutralizes LIKE metacharacters in a user-supplied search
// term so it matches literally.
func escapeLikePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
