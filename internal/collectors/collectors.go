package collectors

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"memberhub/internal/api"
	"memberhub/internal/members"
)

var ErrCollectorNotFound = errors.New("collector not found")

type Collector struct {
	ID          string    `json:"id"`
	Name        *string   `json:"name"`
	Prefix      *string   `json:"prefix"`
	Number      *string   `json:"number"`
	Email       *string   `json:"email"`
	Phone       *string   `json:"phone"`
	Active      bool      `json:"active"`
	MemberCount int       `json:"member_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// Label is the display name used in lists and report sections.
func (c Collector) Label() string {
	if n := members.Str(c.Name); n != "" {
		return n
	}
	return c.ID
}

// MemberLister is the part of the members store used to list a
// collector's members.
type MemberLister interface {
	List(ctx context.Context, f members.Filter) ([]members.Member, error)
}

type Store struct {
	db      *sql.DB
	members MemberLister
}

func NewStore(db *sql.DB, m MemberLister) *Store {
	return &Store{db: db, members: m}
}

const selectCollectors = `
	SELECT c.id, c.name, c.prefix, c.number, c.email, c.phone, c.active, c.created_at,
		COALESCE(m.cnt, 0)
	FROM members_collectors c
	LEFT JOIN (
		SELECT collector, count(*) AS cnt FROM members GROUP BY collector
	) m ON m.collector = c.name
`

func scan(row interface{ Scan(...any) error }) (*Collector, error) {
	c := &Collector{}
	if err := row.Scan(&c.ID, &c.Name, &c.Prefix, &c.Number, &c.Email, &c.Phone, &c.Active, &c.CreatedAt, &c.MemberCount); err != nil {
		return nil, err
	}
	return c, nil
}

// List returns every collector ordered by number, with member counts
// computed in the same query.
func (s *Store) List(ctx context.Context) ([]Collector, error) {
	rows, err := s.db.QueryContext(ctx, selectCollectors+` ORDER BY c.number ASC NULLS LAST`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []Collector{}
	for rows.Next() {
		c, err := scan(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Store) Get(ctx context.Context, name string) (*Collector, error) {
	c, err := scan(s.db.QueryRowContext(ctx, selectCollectors+` WHERE c.name = $1`, name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCollectorNotFound
		}
		return nil, err
	}
	return c, nil
}

func (s *Store) GetByID(ctx context.Context, id string) (*Collector, error) {
	c, err := scan(s.db.QueryRowContext(ctx, selectCollectors+` WHERE c.id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCollectorNotFound
		}
		return nil, err
	}
	return c, nil
}

// ListMembers returns the members assigned to the named collector, newest first.
func (s *Store) ListMembers(ctx context.Context, name string) ([]members.Member, error) {
	return s.members.List(ctx, members.Filter{Collectors: []string{name}, Order: members.OrderNewest})
}

type ListHandler struct {
	Store  *Store
	Logger *slog.Logger
}

func (h *ListHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	cs, err := h.Store.List(r.Context())
	if err != nil {
		h.Logger.Error("list collectors", "err", err)
		api.Error(w, http.StatusInternalServerError, "Could not load collectors.")
		return
	}
	api.JSON(w, http.StatusOK, cs)
}

// MembersHandler serves /api/v1/collectors/{name}/members.
type MembersHandler struct {
	Store  *Store
	Logger *slog.Logger
}

func (h *MembersHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	name := r.PathValue("name")
	if _, err := h.Store.Get(r.Context(), name); err != nil {
		if errors.Is(err, ErrCollectorNotFound) {
			api.Error(w, http.StatusNotFound, "Collector not found.")
			return
		}
		h.Logger.Error("get collector", "err", err, "collector", name)
		api.Error(w, http.StatusInternalServerError, "Could not load collector.")
		return
	}
	ms, err := h.Store.ListMembers(r.Context(), name)
	if err != nil {
		h.Logger.Error("list collector members", "err", err, "collector", name)
		api.Error(w, http.StatusInternalServerError, "Could not load members.")
		return
	}
	api.JSON(w, http.StatusOK, ms)
}
