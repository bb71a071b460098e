package members

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
)

var ErrMemberNotFound = errors.New("member not found")

const columns = `id, member_number, full_name, email, phone, address, town, postcode,
	status, membership_type, collector, collector_id, auth_user_id,
	payment_amount, payment_type, payment_date, payment_notes,
	yearly_payment_amount, yearly_payment_due_date, yearly_payment_status,
	emergency_collection_amount, emergency_collection_due_date, emergency_collection_status,
	emergency_collection_created_at, created_at, updated_at`

type Store struct {
	db  *sql.DB
	now func() time.Time
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMember(row scanner) (*Member, error) {
	m := &Member{}
	err := row.Scan(&m.ID, &m.MemberNumber, &m.FullName, &m.Email, &m.Phone, &m.Address, &m.Town, &m.Postcode,
		&m.Status, &m.MembershipType, &m.Collector, &m.CollectorID, &m.AuthUserID,
		&m.PaymentAmount, &m.PaymentType, &m.PaymentDate, &m.PaymentNotes,
		&m.YearlyPaymentAmount, &m.YearlyPaymentDueDate, &m.YearlyPaymentStatus,
		&m.EmergencyCollectionAmount, &m.EmergencyCollectionDueDate, &m.EmergencyCollectionStatus,
		&m.EmergencyCollectionCreatedAt, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (s *Store) List(ctx context.Context, f Filter) ([]Member, error) {
	clauses := []string{"1=1"}
	args := []interface{}{}
	idx := 1
	if f.Search != "" {
		p := "$" + itoa(idx)
		clauses = append(clauses, "(full_name ILIKE "+p+" OR member_number ILIKE "+p+" OR collector ILIKE "+p+")")
		args = append(args, "%"+escapeLike(f.Search)+"%")
		idx++
	}
	if len(f.Collectors) > 0 {
		clauses = append(clauses, "collector = ANY($"+itoa(idx)+")")
		args = append(args, pq.Array(f.Collectors))
		idx++
	}
	order := "created_at DESC"
	if f.Order == OrderMemberNumber {
		order = "member_number ASC"
	}
	query := "SELECT " + columns + " FROM members WHERE " + strings.Join(clauses, " AND ") + " ORDER BY " + order
	if f.Limit > 0 {
		query += " LIMIT " + itoa(f.Limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []Member{}
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM members`).Scan(&n)
	return n, err
}

func (s *Store) Get(ctx context.Context, id string) (*Member, error) {
	return s.one(ctx, `SELECT `+columns+` FROM members WHERE id = $1`, id)
}

func (s *Store) GetByNumber(ctx context.Context, number string) (*Member, error) {
	return s.one(ctx, `SELECT `+columns+` FROM members WHERE member_number = $1`, number)
}

// FindByNumber looks a member up for login: the number is trimmed and
// upper-cased, an exact match wins, otherwise a single partial match is
// accepted. Anything else is ErrMemberNotFound.
func (s *Store) FindByNumber(ctx context.Context, number string) (*Member, error) {
	n := NormalizeNumber(number)
	if n == "" {
		return nil, ErrMemberNotFound
	}
	m, err := s.GetByNumber(ctx, n)
	if err == nil || !errors.Is(err, ErrMemberNotFound) {
		return m, err
	}
	const q = `SELECT ` + columns + ` FROM members WHERE member_number ILIKE $1 LIMIT 2`
	rows, err := s.db.QueryContext(ctx, q, "%"+escapeLike(n)+"%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var found []*Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		found = append(found, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(found) != 1 {
		return nil, ErrMemberNotFound
	}
	return found[0], nil
}

// FindProfile returns the member record of a signed-in user, matched by
// member number or by the linked auth user id.
func (s *Store) FindProfile(ctx context.Context, number, authUserID string) (*Member, error) {
	const q = `SELECT ` + columns + ` FROM members
		WHERE ($1 <> '' AND member_number = $1) OR auth_user_id::text = $2
		ORDER BY (member_number = $1) DESC LIMIT 1`
	return s.one(ctx, q, number, authUserID)
}

func (s *Store) LinkAuthUser(ctx context.Context, id, authUserID string) error {
	const q = `UPDATE members SET auth_user_id = $1, updated_at = $2 WHERE id = $3`
	return s.exec(ctx, q, authUserID, s.now(), id)
}

func (s *Store) RecordPayment(ctx context.Context, id string, p Payment) error {
	const q = `
		UPDATE members SET payment_amount = $1, payment_type = $2, payment_date = $3,
			payment_notes = $4, updated_at = $5
		WHERE id = $6
	`
	return s.exec(ctx, q, p.Amount, p.Type, p.Date, nullIfEmpty(p.Notes), s.now(), id)
}

func (s *Store) UpdateYearlyPayment(ctx context.Context, id string, y YearlyPayment) error {
	const q = `
		UPDATE members SET yearly_payment_amount = $1, yearly_payment_due_date = $2,
			yearly_payment_status = $3, updated_at = $4
		WHERE id = $5
	`
	return s.exec(ctx, q, y.Amount, y.DueDate, y.Status, s.now(), id)
}

func (s *Store) UpdateEmergencyCollection(ctx context.Context, id string, e EmergencyCollection) error {
	const q = `
		UPDATE members SET emergency_collection_amount = $1, emergency_collection_due_date = $2,
			emergency_collection_status = $3,
			emergency_collection_created_at = COALESCE(emergency_collection_created_at, $4),
			updated_at = $4
		WHERE id = $5
	`
	return s.exec(ctx, q, e.Amount, e.DueDate, e.Status, s.now(), id)
}

// UpdateCollector reassigns a member; the member number is left alone.
func (s *Store) UpdateCollector(ctx context.Context, id, collectorID, collectorName string) error {
	const q = `UPDATE members SET collector_id = $1, collector = $2, updated_at = $3 WHERE id = $4`
	return s.exec(ctx, q, nullIfEmpty(collectorID), nullIfEmpty(collectorName), s.now(), id)
}

func (s *Store) one(ctx context.Context, q string, args ...any) (*Member, error) {
	m, err := scanMember(s.db.QueryRowContext(ctx, q, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMemberNotFound
		}
		return nil, err
	}
	return m, nil
}

func (s *Store) exec(ctx context.Context, q string, args ...any) error {
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrMemberNotFound
	}
	return nil
}

// NormalizeNumber trims and upper-cases a member number as typed by a user.
func NormalizeNumber(n string) string {
	return strings.ToUpper(strings.TrimSpace(n))
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func itoa(i int) string {
	return strconv.Itoa(i)
}
