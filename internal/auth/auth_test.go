package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fakeUsers struct {
	byEmail map[string]*User
	getErr  error
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byEmail: map[string]*User{}}
}

func (f *fakeUsers) GetByEmail(ctx context.Context, email string) (*User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, ErrUserNotFound
	}
	return u, nil
}

func (f *fakeUsers) Create(ctx context.Context, email, password, memberNumber string) (*User, error) {
	email = strings.ToLower(email)
	if _, ok := f.byEmail[email]; ok {
		return nil, ErrUserExists
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return nil, err
	}
	u := &User{ID: uuid.NewString(), Email: email, PasswordHash: string(hash), MemberNumber: memberNumber}
	f.byEmail[email] = u
	return u, nil
}

func TestCredentialsForMember(t *testing.T) {
	email, password := CredentialsForMember(" TM10003 ")
	assert.Equal(t, "tm10003@temp.com", email)
	assert.Equal(t, "TM10003", password)
}

func TestLoginOrSignupRegistersThenSignsIn(t *testing.T) {
	users := newFakeUsers()
	svc := NewService(users, "secret", time.Hour)

	var got []EventType
	unsubscribe := svc.Events().Subscribe(func(e Event) { got = append(got, e.Type) })
	defer unsubscribe()

	first, err := svc.LoginOrSignup(context.Background(), "M001")
	require.NoError(t, err)
	assert.Equal(t, "m001@temp.com", first.Email)
	assert.Equal(t, "M001", first.Metadata.MemberNumber)
	assert.Len(t, users.byEmail, 1)

	second, err := svc.LoginOrSignup(context.Background(), "M001")
	require.NoError(t, err)
	assert.Equal(t, first.UserID, second.UserID)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, []EventType{EventSignedIn, EventSignedIn}, got)
}

func TestSignInWrongPassword(t *testing.T) {
	users := newFakeUsers()
	svc := NewService(users, "secret", time.Hour)
	_, err := svc.SignUp(context.Background(), "a@temp.com", "right", "A")
	require.NoError(t, err)

	_, err = svc.SignIn(context.Background(), "a@temp.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	// an existing account with another password cannot be re-registered
	_, err = svc.LoginOrSignup(context.Background(), "a")
	assert.ErrorIs(t, err, ErrUserExists)
}

func TestSignInStoreFailureIsNotCredentialsError(t *testing.T) {
	users := newFakeUsers()
	users.getErr = errors.New("connection refused")
	svc := NewService(users, "secret", time.Hour)
	_, err := svc.SignIn(context.Background(), "x@temp.com", "x")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)
}

func TestGetSessionAndSignOut(t *testing.T) {
	svc := NewService(newFakeUsers(), "secret", time.Hour)
	ctx := context.Background()
	sess, err := svc.SignUp(ctx, "b@temp.com", "pw", "B1")
	require.NoError(t, err)

	got, err := svc.GetSession(ctx, sess.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, sess.UserID, got.UserID)
	assert.Equal(t, "B1", got.Metadata.MemberNumber)
	assert.WithinDuration(t, sess.ExpiresAt, got.ExpiresAt, time.Second)

	var signedOut *Session
	svc.Events().Subscribe(func(e Event) {
		if e.Type == EventSignedOut {
			signedOut = e.Session
		}
	})
	require.NoError(t, svc.SignOut(ctx, got))
	assert.Equal(t, sess.UserID, signedOut.UserID)

	_, err = svc.GetSession(ctx, sess.AccessToken)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestGetSessionRejectsGarbage(t *testing.T) {
	svc := NewService(newFakeUsers(), "secret", time.Hour)
	for _, tok := range []string{"", "abc", "a.b.c"} {
		_, err := svc.GetSession(context.Background(), tok)
		assert.ErrorIs(t, err, ErrUnauthenticated, tok)
	}

	other := NewService(newFakeUsers(), "other-secret", time.Hour)
	sess, err := other.SignUp(context.Background(), "c@temp.com", "pw", "")
	require.NoError(t, err)
	_, err = svc.GetSession(context.Background(), sess.AccessToken)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestRefreshRevokesOldToken(t *testing.T) {
	svc := NewService(newFakeUsers(), "secret", time.Hour)
	ctx := context.Background()
	sess, err := svc.SignUp(ctx, "d@temp.com", "pw", "D1")
	require.NoError(t, err)

	var refreshed bool
	svc.Events().Subscribe(func(e Event) { refreshed = refreshed || e.Type == EventTokenRefreshed })

	fresh, err := svc.Refresh(ctx, sess)
	require.NoError(t, err)
	assert.True(t, refreshed)
	assert.Equal(t, sess.UserID, fresh.UserID)

	_, err = svc.GetSession(ctx, sess.AccessToken)
	assert.ErrorIs(t, err, ErrUnauthenticated)
	_, err = svc.GetSession(ctx, fresh.AccessToken)
	assert.NoError(t, err)

	_, err = svc.Refresh(ctx, nil)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestPurgeRevocations(t *testing.T) {
	svc := NewService(newFakeUsers(), "secret", time.Hour)
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	svc.revoked.revoke("old", now.Add(-time.Minute))
	svc.revoked.revoke("live", now.Add(time.Minute))

	assert.Equal(t, 1, svc.PurgeRevocations())
	assert.True(t, svc.revoked.revoked("live"))
	assert.False(t, svc.revoked.revoked("old"))
}

func TestBrokerUnsubscribe(t *testing.T) {
	b := NewBroker()
	calls := 0
	unsubscribe := b.Subscribe(func(Event) { calls++ })
	b.Publish(Event{Type: EventSignedIn})
	unsubscribe()
	unsubscribe()
	b.Publish(Event{Type: EventSignedIn})
	assert.Equal(t, 1, calls)
	assert.Zero(t, b.Len())
}

func TestJWTMiddleware(t *testing.T) {
	svc := NewService(newFakeUsers(), "secret", time.Hour)
	sess, err := svc.SignUp(context.Background(), "e@temp.com", "pw", "E1")
	require.NoError(t, err)

	var seen *Session
	h := JWTMiddleware(svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = SessionFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req.Header.Set("Authorization", "Bearer "+sess.AccessToken)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, seen)
	assert.Equal(t, sess.UserID, seen.UserID)
}

func TestLogoutHandler(t *testing.T) {
	svc := NewService(newFakeUsers(), "secret", time.Hour)
	sess, err := svc.SignUp(context.Background(), "f@temp.com", "pw", "F1")
	require.NoError(t, err)

	h := JWTMiddleware(svc)(&LogoutHandler{Service: svc})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer "+sess.AccessToken)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
