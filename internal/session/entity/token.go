package entity

import "time"

// AccessToken is a persisted session token. The token string is the primary key.
type AccessToken struct {
	Token   string    `db:"token" json:"token"`
	UserID  int64     `db:"user_id" json:"user_id"`
	Expires time.Time `db:"expires" json:"expires"`
}

// Expired reports whether the token is past its expiry at now.
func (t *AccessToken) Expired(now time.Time) bool {
	return t.Expires.Before(now)
}
