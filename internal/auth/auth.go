package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// UserStore is the account storage the service needs.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (*User, error)
	Create(ctx context.Context, email, password, memberNumber string) (*User, error)
}

type Service struct {
	users   UserStore
	secret  []byte
	ttl     time.Duration
	events  *Broker
	revoked *revocations
	now     func() time.Time
}

func NewService(users UserStore, secret string, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Service{
		users:   users,
		secret:  []byte(secret),
		ttl:     ttl,
		events:  NewBroker(),
		revoked: newRevocations(),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

var (
	ErrInvalidCredentials = errors.New("invalid login credentials")
	ErrUnauthenticated    = errors.New("no authenticated session")
)

// Events returns the broker that receives SIGNED_IN, SIGNED_OUT and
// TOKEN_REFRESHED notifications.
func (s *Service) Events() *Broker {
	return s.events
}

// CredentialsForMember maps a member number to the placeholder account
// credentials members sign in with.
func CredentialsForMember(memberNumber string) (email, password string) {
	n := strings.TrimSpace(memberNumber)
	return strings.ToLower(n) + "@temp.com", n
}

func (s *Service) SignIn(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	sess, err := s.issue(user.ID, user.Email, user.MemberNumber)
	if err != nil {
		return nil, err
	}
	s.publish(EventSignedIn, sess)
	return sess, nil
}

func (s *Service) SignUp(ctx context.Context, email, password, memberNumber string) (*Session, error) {
	user, err := s.users.Create(ctx, email, password, memberNumber)
	if err != nil {
		return nil, err
	}
	sess, err := s.issue(user.ID, user.Email, user.MemberNumber)
	if err != nil {
		return nil, err
	}
	s.publish(EventSignedIn, sess)
	return sess, nil
}

// LoginOrSignup signs a member in with their synthetic credentials and
// registers the account on first use.
func (s *Service) LoginOrSignup(ctx context.Context, memberNumber string) (*Session, error) {
	email, password := CredentialsForMember(memberNumber)
	sess, err := s.SignIn(ctx, email, password)
	if err == nil {
		return sess, nil
	}
	if !errors.Is(err, ErrInvalidCredentials) {
		return nil, err
	}
	return s.SignUp(ctx, email, password, strings.TrimSpace(memberNumber))
}

// SignOut revokes the session. Signing out a nil session is a no-op.
func (s *Service) SignOut(ctx context.Context, sess *Session) error {
	if sess == nil {
		return nil
	}
	s.revoked.revoke(sess.ID, sess.ExpiresAt)
	s.publish(EventSignedOut, sess)
	return nil
}

// Refresh exchanges a live session for a new one and revokes the old.
func (s *Service) Refresh(ctx context.Context, sess *Session) (*Session, error) {
	if sess == nil {
		return nil, ErrUnauthenticated
	}
	fresh, err := s.issue(sess.UserID, sess.Email, sess.Metadata.MemberNumber)
	if err != nil {
		return nil, err
	}
	s.revoked.revoke(sess.ID, sess.ExpiresAt)
	s.publish(EventTokenRefreshed, fresh)
	return fresh, nil
}

// GetSession returns the session behind a bearer token, or
// ErrUnauthenticated if the token is invalid, expired or signed out.
func (s *Service) GetSession(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}
	claims, err := s.ParseToken(token)
	if err != nil {
		return nil, ErrUnauthenticated
	}
	if s.revoked.revoked(claims.ID) {
		return nil, ErrUnauthenticated
	}
	sess := &Session{
		ID:          claims.ID,
		AccessToken: token,
		UserID:      claims.Subject,
		Email:       claims.Email,
		Metadata:    Metadata{MemberNumber: claims.MemberNumber},
	}
	if claims.ExpiresAt != nil {
		sess.ExpiresAt = claims.ExpiresAt.Time
	}
	return sess, nil
}

// PurgeRevocations forgets revocations whose tokens have expired anyway.
func (s *Service) PurgeRevocations() int {
	return s.revoked.purge(s.now())
}

type Claims struct {
	Email        string `json:"email"`
	MemberNumber string `json:"member_number,omitempty"`
	jwt.RegisteredClaims
}

func (s *Service) issue(userID, email, memberNumber string) (*Session, error) {
	now := s.now()
	exp := now.Add(s.ttl)
	claims := Claims{
		Email:        email,
		MemberNumber: memberNumber,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(s.secret)
	if err != nil {
		return nil, err
	}
	return &Session{
		ID:          claims.ID,
		AccessToken: signed,
		UserID:      userID,
		Email:       email,
		Metadata:    Metadata{MemberNumber: memberNumber},
		ExpiresAt:   exp,
	}, nil
}

func (s *Service) ParseToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

func (s *Service) publish(t EventType, sess *Session) {
	s.events.Publish(Event{Type: t, Session: sess, At: s.now()})
}
