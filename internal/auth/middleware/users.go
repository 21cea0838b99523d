// internal/auth/middleware/users.go
package auth

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// UserStore authenticates and provisions local accounts. Passwords are
// stored as bcrypt hashes only.
type UserStore interface {
	Authenticate(ctx context.Context, username, password string) (User, error)
	Upsert(ctx context.Context, u User, password string) error
}

// ---- SQL-backed ----

type SQLUserStore struct{ db *sql.DB }

func NewSQLUserStore(db *sql.DB) *SQLUserStore { return &SQLUserStore{db: db} }

func (s *SQLUserStore) Authenticate(ctx context.Context, username, password string) (User, error) {
	var u User
	var hash string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, role, pass_hash FROM users WHERE username=$1`,
		username).Scan(&u.ID, &u.Username, &u.Role, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return User{}, ErrInvalidCredentials
	}
	return u, nil
}

func (s *SQLUserStore) Upsert(ctx context.Context, u User, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO users (id, username, pass_hash, role, created_at)
		 VALUES ($1,$2,$3,$4,$5)
		 ON CONFLICT (username) DO UPDATE SET pass_hash=$3, role=$4`,
		u.ID, u.Username, string(hash), u.Role, time.Now().Unix())
	return err
}

// ---- in-memory (tests, dev without a DB) ----

type memUser struct {
	user User
	hash []byte
}

type MemoryUserStore struct {
	mu    sync.Mutex
	users map[string]memUser
}

func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{users: map[string]memUser{}}
}

func (s *MemoryUserStore) Authenticate(_ context.Context, username, password string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mu, ok := s.users[username]
	if !ok || bcrypt.CompareHashAndPassword(mu.hash, []byte(password)) != nil {
		return User{}, ErrInvalidCredentials
	}
	return mu.user, nil
}

func (s *MemoryUserStore) Upsert(_ context.Context, u User, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return err
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.Username] = memUser{user: u, hash: hash}
	return nil
}

// SeedDemoUsers provisions the three demo accounts used in dev mode.
// Credentials are username==password; never enabled in prod.
func SeedDemoUsers(ctx context.Context, store UserStore) error {
	for _, u := range []User{
		{Username: "student", Role: "student"},
		{Username: "teacher", Role: "teacher"},
		{Username: "admin", Role: "admin"},
	} {
		if err := store.Upsert(ctx, u, u.Username); err != nil {
			return err
		}
	}
	return nil
}
