package collectors

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memberhub/internal/logging"
	"memberhub/internal/members"
)

var collectorColumns = []string{"id", "name", "prefix", "number", "email", "phone", "active", "created_at", "cnt"}

type fakeMembers struct {
	got  members.Filter
	list []members.Member
	err  error
}

func (f *fakeMembers) List(ctx context.Context, filter members.Filter) ([]members.Member, error) {
	f.got = filter
	return f.list, f.err
}

func TestStoreList(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	now := time.Now()
	mock.ExpectQuery(`LEFT JOIN .* ORDER BY c.number ASC NULLS LAST`).
		WillReturnRows(sqlmock.NewRows(collectorColumns).
			AddRow("c1", "Ali", "AL", "01", nil, nil, true, now, 3).
			AddRow("c2", nil, "XX", "02", nil, nil, false, now, 0))

	got, err := NewStore(conn, &fakeMembers{}).List(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 3, got[0].MemberCount)
	assert.Equal(t, "Ali", got[0].Label())
	assert.Equal(t, "c2", got[1].Label())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreListMembersFiltersByCollector(t *testing.T) {
	fm := &fakeMembers{list: []members.Member{{ID: "m1"}}}
	got, err := NewStore(nil, fm).ListMembers(context.Background(), "Ali")
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, []string{"Ali"}, fm.got.Collectors)
	assert.Equal(t, members.OrderNewest, fm.got.Order)
}

func TestMembersHandler(t *testing.T) {
	tests := []struct {
		name     string
		rows     *sqlmock.Rows
		queryErr error
		want     int
	}{
		{"found", sqlmock.NewRows(collectorColumns).AddRow("c1", "Ali", nil, "01", nil, nil, true, time.Now(), 1), nil, http.StatusOK},
		{"unknown collector", sqlmock.NewRows(collectorColumns), nil, http.StatusNotFound},
		{"backend failure", nil, errors.New("pq: timeout"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer conn.Close()
			q := mock.ExpectQuery(`WHERE c.name = \$1`).WithArgs("Ali")
			if tt.queryErr != nil {
				q.WillReturnError(tt.queryErr)
			} else {
				q.WillReturnRows(tt.rows)
			}

			fm := &fakeMembers{list: []members.Member{{ID: "m1", MemberNumber: "M001"}}}
			mux := http.NewServeMux()
			mux.Handle("GET /api/v1/collectors/{name}/members", &MembersHandler{Store: NewStore(conn, fm), Logger: logging.Discard()})
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/collectors/Ali/members", nil))

			assert.Equal(t, tt.want, rec.Code)
			assert.NotContains(t, rec.Body.String(), "pq:")
			if tt.want == http.StatusOK {
				var got []members.Member
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
				assert.Equal(t, "M001", got[0].MemberNumber)
			}
		})
	}
}

func TestStoreGetByID(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	mock.ExpectQuery(`WHERE c.id = \$1`).WithArgs("c1").
		WillReturnRows(sqlmock.NewRows(collectorColumns).AddRow("c1", "Ali", "AL", "01", nil, nil, true, time.Now(), 4))
	mock.ExpectQuery(`WHERE c.id = \$1`).WithArgs("c9").
		WillReturnRows(sqlmock.NewRows(collectorColumns))

	s := NewStore(conn, &fakeMembers{})
	c, err := s.GetByID(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, "Ali", c.Label())
	assert.Equal(t, 4, c.MemberCount)

	_, err = s.GetByID(context.Background(), "c9")
	assert.ErrorIs(t, err, ErrCollectorNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
