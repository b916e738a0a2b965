// Package auth stores API users and issues the bearer tokens that guard the
// job server's mutating routes.
package auth

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrInvalidCreds = errors.New("invalid credentials")
	ErrUserExists   = errors.New("username already exists")
	ErrLastUser     = errors.New("cannot delete the last user")
)

// DefaultUser is created, with the same password, when the users table is
// empty.
const DefaultUser = "admin"

type User struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
	CreatedAt    int64  `json:"created_at"`
}

// Service owns the users table and signs tokens with one HS256 secret.
type Service struct {
	db     *sql.DB
	secret []byte
}

func NewService(db *sql.DB, secret string) *Service {
	return &Service{db: db, secret: []byte(secret)}
}

// EnsureSchema creates the users table and the default user.
func (s *Service) EnsureSchema() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at INTEGER NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("create users table: %w", err)
	}
	n, err := s.count()
	if err != nil {
		return err
	}
	if n == 0 {
		if err := s.Register(DefaultUser, DefaultUser); err != nil {
			return fmt.Errorf("create default user: %w", err)
		}
	}
	return nil
}

func (s *Service) count() (int, error) {
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM users").Scan(&n)
	return n, err
}

// Register adds a user with a bcrypt hash of password.
func (s *Service) Register(username, password string) error {
	if username == "" || password == "" {
		return errors.New("username and password are required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	res, err := s.db.Exec(`INSERT INTO users (username, password_hash, created_at)
		VALUES (?, ?, ?) ON CONFLICT(username) DO NOTHING`,
		username, string(hash), time.Now().Unix())
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserExists
	}
	return nil
}

func (s *Service) lookup(username string) (User, error) {
	var u User
	err := s.db.QueryRow("SELECT id, username, password_hash, created_at FROM users WHERE username = ?", username).
		Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return u, ErrUserNotFound
	}
	return u, err
}

// ListUsers returns every user ordered by name, without password hashes.
func (s *Service) ListUsers() ([]User, error) {
	rows, err := s.db.Query("SELECT id, username, created_at FROM users ORDER BY username")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []User{}
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Username, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// DeleteUser removes a user. The last user is kept so the server cannot be
// locked out.
func (s *Service) DeleteUser(username string) error {
	n, err := s.count()
	if err != nil {
		return err
	}
	if n <= 1 {
		return ErrLastUser
	}
	res, err := s.db.Exec("DELETE FROM users WHERE username = ?", username)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}
