package types

import (
	"context"
	"time"
)

type ConversionStatus string

const (
	ConversionSucceeded ConversionStatus = "succeeded"
	ConversionFailed    ConversionStatus = "failed"
)

// ConversionRecord is one finished conversion attempt.
type ConversionRecord struct {
	UserID    int64
	Category  Category
	SourceExt string
	Target    Format
	Status    ConversionStatus
	ErrorKind Kind
	Duration  time.Duration
	CreatedAt time.Time
}

type UserStats struct {
	Total     int
	Succeeded int
	Failed    int
	LastAt    *time.Time
	// ByCategory counts successful conversions per category.
	ByCategory map[Category]int
}

type HistoryStore interface {
	Record(ctx context.Context, rec ConversionRecord) error
	UserStats(ctx context.Context, userID int64) (*UserStats, error)
	Close() error
}
