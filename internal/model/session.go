package model

import "time"

// Session binds an opaque token to an authenticated user.
type Session struct {
	ID             string    `json:"-"`
	UserID         int64     `json:"user_id"`
	Username       string    `json:"username"`
	FullName       string    `json:"full_name"`
	ProfilePicture string    `json:"profile_picture"`
	CreatedAt      time.Time `json:"created_at"`
}

// SessionMeta is the client information recorded with a new session.
type SessionMeta struct {
	IP        string
	UserAgent string
}
