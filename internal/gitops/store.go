package gitops

import (
	"context"
	"database/sql"
	"time"
)

type Status string

const (
	StatusStarted   Status = "started"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

const OperationPush = "push"

// Log is one row of git_operations_logs.
type Log struct {
	ID            int64     `json:"id"`
	OperationType string    `json:"operation_type"`
	Status        Status    `json:"status"`
	Message       *string   `json:"message"`
	CreatedBy     *string   `json:"created_by"`
	CreatedAt     time.Time `json:"created_at"`
}

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Start records a started operation and returns its id.
func (s *Store) Start(ctx context.Context, op, userID, message string) (int64, error) {
	const q = `
		INSERT INTO git_operations_logs (operation_type, status, message, created_by)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	var id int64
	err := s.db.QueryRowContext(ctx, q, op, string(StatusStarted), message, nullUUID(userID)).Scan(&id)
	return id, err
}

func (s *Store) Complete(ctx context.Context, id int64, message string) error {
	const q = `UPDATE git_operations_logs SET status = $1, message = $2 WHERE id = $3`
	_, err := s.db.ExecContext(ctx, q, string(StatusCompleted), message, id)
	return err
}

// Fail records a failed operation as its own row.
func (s *Store) Fail(ctx context.Context, op, userID, message string) error {
	const q = `
		INSERT INTO git_operations_logs (operation_type, status, message, created_by)
		VALUES ($1, $2, $3, $4)
	`
	_, err := s.db.ExecContext(ctx, q, op, string(StatusFailed), message, nullUUID(userID))
	return err
}

// List returns the most recent logs first.
func (s *Store) List(ctx context.Context, limit int) ([]Log, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `
		SELECT id, operation_type, status, message, created_by::text, created_at
		FROM git_operations_logs
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []Log{}
	for rows.Next() {
		var l Log
		if err := rows.Scan(&l.ID, &l.OperationType, &l.Status, &l.Message, &l.CreatedBy, &l.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// PruneBefore deletes logs created before t and returns how many were removed.
func (s *Store) PruneBefore(ctx context.Context, t time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM git_operations_logs WHERE created_at < $1`, t)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func nullUUID(id string) sql.NullString {
	return sql.NullString{String: id, Valid: id != ""}
}
