package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

type Store struct {
	db   *sql.DB
	cost int
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db, cost: bcrypt.DefaultCost}
}

var (
	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("user already registered")
)

func (s *Store) GetByEmail(ctx context.Context, email string) (*User, error) {
	const q = `SELECT id, email, password_hash, member_number, created_at FROM auth_users WHERE email = $1`
	return s.scanOne(s.db.QueryRowContext(ctx, q, strings.ToLower(email)))
}

func (s *Store) GetByID(ctx context.Context, id string) (*User, error) {
	const q = `SELECT id, email, password_hash, member_number, created_at FROM auth_users WHERE id = $1`
	return s.scanOne(s.db.QueryRowContext(ctx, q, id))
}

func (s *Store) scanOne(row *sql.Row) (*User, error) {
	u := &User{}
	var number sql.NullString
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &number, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	u.MemberNumber = number.String
	return u, nil
}

// Create registers a new account. It returns ErrUserExists when the email
// is already taken.
func (s *Store) Create(ctx context.Context, email, password, memberNumber string) (*User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, err
	}
	const q = `
		INSERT INTO auth_users (id, email, password_hash, member_number, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (email) DO NOTHING
		RETURNING id, email, password_hash, member_number, created_at
	`
	var number sql.NullString
	if memberNumber != "" {
		number = sql.NullString{String: memberNumber, Valid: true}
	}
	u, err := s.scanOne(s.db.QueryRowContext(ctx, q,
		uuid.NewString(), strings.ToLower(email), string(hash), number, time.Now().UTC()))
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrUserExists
	}
	return u, err
}

// RoleAssigner grants a role to a user; satisfied by the roles store.
type RoleAssigner interface {
	Assign(ctx context.Context, userID, role string) error
}

type seedFile struct {
	Accounts []struct {
		MemberNumber string   `yaml:"member_number"`
		Email        string   `yaml:"email"`
		Password     string   `yaml:"password"`
		Roles        []string `yaml:"roles"`
	} `yaml:"accounts"`
}

// SeedFromFile creates the accounts listed in a YAML file unless they
// already exist, and grants their roles. Accounts without an explicit
// email/password get the synthetic member credentials.
func (s *Store) SeedFromFile(ctx context.Context, path string, roles RoleAssigner) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var sf seedFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return fmt.Errorf("parse seed file: %w", err)
	}
	for _, a := range sf.Accounts {
		if a.MemberNumber == "" && a.Email == "" {
			continue
		}
		email, password := a.Email, a.Password
		if email == "" || password == "" {
			email, password = CredentialsForMember(a.MemberNumber)
		}
		u, err := s.GetByEmail(ctx, email)
		if errors.Is(err, ErrUserNotFound) {
			u, err = s.Create(ctx, email, password, a.MemberNumber)
		}
		if err != nil {
			return fmt.Errorf("seed %s: %w", email, err)
		}
		for _, r := range a.Roles {
			if err := roles.Assign(ctx, u.ID, r); err != nil {
				return fmt.Errorf("seed role %s for %s: %w", r, email, err)
			}
		}
	}
	return nil
}
