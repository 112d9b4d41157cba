package domain

import (
	"strings"
	"time"
)

// Session is the explicit auth context handed to repositories. It replaces any
// ambient token storage: created at login, cleared at logout.
type Session struct {
	ID        string
	Token     string
	ViewerID  int64
	Username  string
	ExpiresAt time.Time
}

func (s *Session) Authenticated() bool {
	return s != nil && strings.TrimSpace(s.Token) != "" && s.ViewerID > 0
}

func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Clear drops the credentials so that any further repository call fails
// with an authorization error.
func (s *Session) Clear() {
	s.Token = ""
	s.ViewerID = 0
	s.Username = ""
}

// SessionRecord is the persisted form. IDHash is a blake2b digest of the cookie value.
type SessionRecord struct {
	IDHash    string    `gorm:"primaryKey;size:64"`
	Token     string    `gorm:"type:text;not null"`
	ViewerID  int64     `gorm:"index;not null"`
	Username  string    `gorm:"size:255"`
	ExpiresAt time.Time `gorm:"index;not null"`
	CreatedAt time.Time
}

func (SessionRecord) TableName() string { return "sessions" }
