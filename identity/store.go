package identity

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrUserNotFound is returned by lookups that match no row.
var ErrUserNotFound = errors.New("user not found")

// Store provides read access to login accounts in the users table.
type Store struct {
	pg     *pgxpool.Pool
	schema string
}

func NewStore(pg *pgxpool.Pool, schema string) *Store {
	s := strings.TrimSpace(schema)
	if s == "" {
		s = "public"
	}
	return &Store{pg: pg, schema: s}
}

func (s *Store) usersTable() string { return s.schema + ".users" }

type User struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	Role         Role
}

// GetByEmail looks an account up by its login email (case-insensitive).
func (s *Store) GetByEmail(ctx context.Context, email string) (*User, error) {
	email = strings.TrimSpace(email)
	if s.pg == nil || email == "" {
		return nil, ErrUserNotFound
	}
	return s.scanOne(ctx, `SELECT id, email, password_hash, role FROM `+s.usersTable()+` WHERE lower(email)=lower($1) LIMIT 1`, email)
}

func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	if s.pg == nil || id == uuid.Nil {
		return nil, ErrUserNotFound
	}
	return s.scanOne(ctx, `SELECT id, email, password_hash, role FROM `+s.usersTable()+` WHERE id=$1 LIMIT 1`, id)
}

// Create inserts an account and returns it with its generated id.
func (s *Store) Create(ctx context.Context, email, passwordHash string, role Role) (*User, error) {
	if !role.Valid() {
		role = RoleUser
	}
	u := User{ID: uuid.New(), Email: strings.TrimSpace(email), PasswordHash: passwordHash, Role: role}
	_, err := s.pg.Exec(ctx, `INSERT INTO `+s.usersTable()+` (id, email, password_hash, role) VALUES ($1,$2,$3,$4)`,
		u.ID, u.Email, u.PasswordHash, string(u.Role))
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) scanOne(ctx context.Context, q string, arg any) (*User, error) {
	var u User
	var role string
	err := s.pg.QueryRow(ctx, q, arg).Scan(&u.ID, &u.Email, &u.PasswordHash, &role)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	u.Role, _ = ParseRole(role)
	return &u, nil
}
