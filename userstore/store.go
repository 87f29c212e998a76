package userstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	portfolioAuth "github.com/MrEthical07/portfolioAuth"
	"github.com/MrEthical07/portfolioAuth/permission"
	"github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Dialect selects placeholder style and DDL.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// ErrEmailTaken is returned by CreateUser for a duplicate email.
var ErrEmailTaken = errors.New("email already registered")

// SQLStore reads and writes users in a single "users" table.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

// Open opens dsn with the driver for dialect and verifies connectivity.
func Open(ctx context.Context, dialect Dialect, dsn string) (*SQLStore, error) {
	switch dialect {
	case Postgres, SQLite:
	default:
		return nil, fmt.Errorf("userstore: unsupported dialect %q", dialect)
	}
	db, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, err
	}
	if dialect == SQLite {
		// in-memory databases are per connection
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return New(db, dialect), nil
}

// New wraps an existing handle.
func New(db *sql.DB, dialect Dialect) *SQLStore {
	return &SQLStore{db: db, dialect: dialect}
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Migrate creates the users table if it does not exist.
func (s *SQLStore) Migrate(ctx context.Context) error {
	ddl := `CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		role INTEGER NOT NULL DEFAULT 2,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`
	if s.dialect == Postgres {
		ddl = `CREATE TABLE IF NOT EXISTS users (
		id BIGSERIAL PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		role SMALLINT NOT NULL DEFAULT 2,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`
	}
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("userstore: migrate: %w", err)
	}
	return nil
}

// GetUser implements portfolioAuth.UserProvider.
func (s *SQLStore) GetUser(ctx context.Context, filter portfolioAuth.UserFilter) (*portfolioAuth.User, error) {
	var row *sql.Row
	switch {
	case filter.ID != 0:
		row = s.db.QueryRowContext(ctx, s.rebind(`SELECT id, email, password_hash, role FROM users WHERE id = ?`), filter.ID)
	case filter.Email != "":
		row = s.db.QueryRowContext(ctx, s.rebind(`SELECT id, email, password_hash, role FROM users WHERE email = ?`), normalizeEmail(filter.Email))
	default:
		return nil, portfolioAuth.ErrUserNotFound
	}

	var (
		u    portfolioAuth.User
		role int64
	)
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &role); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, portfolioAuth.ErrUserNotFound
		}
		return nil, err
	}
	u.Role = permission.Role(role)
	if !u.Role.Valid() {
		return nil, fmt.Errorf("userstore: user %d has invalid role %d", u.ID, role)
	}
	return &u, nil
}

// CreateUser inserts a user and returns it with its new id.
func (s *SQLStore) CreateUser(ctx context.Context, email, passwordHash string, role permission.Role) (*portfolioAuth.User, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("userstore: invalid role %d", role)
	}
	email = normalizeEmail(email)

	var id int64
	if s.dialect == Postgres {
		err := s.db.QueryRowContext(ctx,
			`INSERT INTO users (email, password_hash, role) VALUES ($1, $2, $3) RETURNING id`,
			email, passwordHash, int64(role)).Scan(&id)
		if err != nil {
			return nil, s.mapInsertError(err)
		}
	} else {
		res, err := s.db.ExecContext(ctx,
			`INSERT INTO users (email, password_hash, role) VALUES (?, ?, ?)`,
			email, passwordHash, int64(role))
		if err != nil {
			return nil, s.mapInsertError(err)
		}
		if id, err = res.LastInsertId(); err != nil {
			return nil, err
		}
	}

	return &portfolioAuth.User{ID: id, Email: email, PasswordHash: passwordHash, Role: role}, nil
}

// UpdateRole changes the role of user id. The change reaches the user's
// tokens on their next renewal.
func (s *SQLStore) UpdateRole(ctx context.Context, id int64, role permission.Role) error {
	if !role.Valid() {
		return fmt.Errorf("userstore: invalid role %d", role)
	}
	return s.updateOne(ctx, `UPDATE users SET role = ? WHERE id = ?`, int64(role), id)
}

// UpdatePasswordHash replaces the stored hash of user id, typically after
// Hasher.NeedsUpgrade reported a legacy hash.
func (s *SQLStore) UpdatePasswordHash(ctx context.Context, id int64, passwordHash string) error {
	return s.updateOne(ctx, `UPDATE users SET password_hash = ? WHERE id = ?`, passwordHash, id)
}

func (s *SQLStore) updateOne(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, s.rebind(query), args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return portfolioAuth.ErrUserNotFound
	}
	return nil
}

// rebind rewrites ? placeholders to $n for Postgres.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != Postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) mapInsertError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return ErrEmailTaken
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return ErrEmailTaken
	}
	return err
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
