package roles

import (
	"context"
	"database/sql"
	"fmt"
)

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// ListForUser returns every role row of the user. Values the application
// does not know are skipped.
func (s *Store) ListForUser(ctx context.Context, userID string) ([]Role, error) {
	const q = `SELECT role FROM user_roles WHERE user_id = $1`
	rows, err := s.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Role
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		if r, ok := ParseRole(raw); ok {
			res = append(res, r)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Store) Assign(ctx context.Context, userID, role string) error {
	r, ok := ParseRole(role)
	if !ok {
		return fmt.Errorf("unknown role %q", role)
	}
	const q = `
		INSERT INTO user_roles (user_id, role) VALUES ($1, $2)
		ON CONFLICT (user_id, role) DO NOTHING
	`
	_, err := s.db.ExecContext(ctx, q, userID, string(r))
	return err
}

func (s *Store) Revoke(ctx context.Context, userID string, role Role) error {
	const q = `DELETE FROM user_roles WHERE user_id = $1 AND role = $2`
	_, err := s.db.ExecContext(ctx, q, userID, string(role))
	return err
}
