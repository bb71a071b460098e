package members

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memberhub/internal/api"
	"memberhub/internal/auth"
	"memberhub/internal/logging"
)

func TestListHandler(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery(`FROM members WHERE 1=1 AND \(full_name ILIKE \$1`).WithArgs("%ab%").
		WillReturnRows(sqlmock.NewRows(memberColumns).AddRow(memberRow("1", "M001", "Abdul", "C1")...))

	rec := httptest.NewRecorder()
	(&ListHandler{Store: s, Logger: logging.Discard()}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/members?search=+ab+", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var got []Member
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "M001", got[0].MemberNumber)
}

func TestListHandlerHidesBackendError(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery(`FROM members`).WillReturnError(errors.New("pq: relation does not exist"))

	rec := httptest.NewRecorder()
	(&ListHandler{Store: s, Logger: logging.Discard()}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/members", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "pq:")
}

func TestCountHandler(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery(`SELECT count\(\*\) FROM members`).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	rec := httptest.NewRecorder()
	(&CountHandler{Store: s, Logger: logging.Discard()}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/members/count", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var got []api.Count
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, []api.Count{{Label: "Total Members", Count: 7}}, got)
}

func TestDetailHandlerNotFound(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery(`WHERE id = \$1`).WithArgs("x").WillReturnRows(sqlmock.NewRows(memberColumns))

	mux := http.NewServeMux()
	mux.Handle("GET /api/v1/members/{id}", &DetailHandler{Store: s, Logger: logging.Discard()})
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/members/x", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPaymentHandlerYearlyDefaults(t *testing.T) {
	s, mock := newMock(t)
	now := time.Date(2025, 7, 4, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec(`UPDATE members SET yearly_payment_amount`).
		WithArgs(40.0, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), "pending", created, "1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	mux := http.NewServeMux()
	mux.Handle("PATCH /api/v1/members/{id}/yearly", &PaymentHandler{
		Store: s, Kind: KindYearly, Logger: logging.Discard(), Now: func() time.Time { return now },
	})
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/api/v1/members/1/yearly", strings.NewReader(`{}`)))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentHandlerValidation(t *testing.T) {
	s, _ := newMock(t)
	tests := []struct {
		name string
		kind PaymentKind
		body string
	}{
		{"malformed", KindPayment, `{`},
		{"negative", KindPayment, `{"amount":-1,"type":"cash"}`},
		{"missing type", KindPayment, `{"amount":5}`},
		{"emergency without due date", KindEmergency, `{"amount":5}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &PaymentHandler{Store: s, Kind: tt.kind, Logger: logging.Discard()}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/api/v1/members/1/payment", strings.NewReader(tt.body)))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestProfileHandler(t *testing.T) {
	s, mock := newMock(t)
	row := memberRow("1", "M001", "Ayesha", "C1")
	row[15] = time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	row[13] = 12.5
	mock.ExpectQuery(`auth_user_id::text = \$2`).WithArgs("M001", "u1").
		WillReturnRows(sqlmock.NewRows(memberColumns).AddRow(row...))

	h := &ProfileHandler{Store: s, Rule: RuleGrace, Logger: logging.Discard()}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/me/profile", nil)
	sess := &auth.Session{ID: "s1", UserID: "u1", Metadata: auth.Metadata{MemberNumber: "M001"}}
	req = req.WithContext(auth.WithSession(req.Context(), sess))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body profileResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "M001", body.Member.MemberNumber)
	require.Len(t, body.Timeline, 1)
	assert.Equal(t, "£12.50", body.Timeline[0].Amount)
	assert.Equal(t, "2 January 2025", body.Timeline[0].Display)
}

func TestProfileHandlerRequiresSession(t *testing.T) {
	s, _ := newMock(t)
	rec := httptest.NewRecorder()
	(&ProfileHandler{Store: s, Logger: logging.Discard()}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/me/profile", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
