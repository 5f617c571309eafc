package types

import (
	"context"
	"errors"
	"time"
)

type Session struct {
	UserID    int64     `json:"user_id"`
	ChatID    int64     `json:"chat_id"`
	Step      Step      `json:"step"`
	Category  Category  `json:"category,omitempty"`
	Format    Format    `json:"format,omitempty"`
	Lang      string    `json:"lang,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Spec returns the stored selection. ok is false until both parts are set.
func (s *Session) Spec() (FormatSpec, bool) {
	if s == nil || s.Category == "" || s.Format == "" {
		return FormatSpec{}, false
	}
	return FormatSpec{Category: s.Category, Format: s.Format}, true
}

type SessionStore interface {
	Get(ctx context.Context, userID int64) (*Session, error)
	Save(ctx context.Context, session *Session) error
	Delete(ctx context.Context, userID int64) error
}

// ConversionRequest is consumed once by the dispatcher.
type ConversionRequest struct {
	InputPath    string
	OriginalName string
	Target       FormatSpec
}

// Result describes a successful conversion. The caller owns OutputPath.
type Result struct {
	OutputPath string
	FileName   string
}

// ErrNotFound is returned by stores for missing sessions.
var ErrNotFound = errors.New("not found")
