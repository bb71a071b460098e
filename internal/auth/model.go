package auth

import "time"

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	MemberNumber string    `json:"member_number,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type Metadata struct {
	MemberNumber string `json:"member_number,omitempty"`
}

// Session is an authenticated identity. AccessToken is the bearer token
// clients send back; ID identifies the session for revocation.
type Session struct {
	ID          string    `json:"session_id"`
	AccessToken string    `json:"access_token"`
	UserID      string    `json:"user_id"`
	Email       string    `json:"email"`
	Metadata    Metadata  `json:"user_metadata"`
	ExpiresAt   time.Time `json:"expires_at"`
}
