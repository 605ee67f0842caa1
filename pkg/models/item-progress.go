package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	ItemStatusPending   = "pending"
	ItemStatusCompleted = "completed"
	ItemStatusFailed    = "failed"
)

const (
	ItemSourceCalibre    = "calibre"
	ItemSourceFilesystem = "filesystem"
)

// ItemProgress is the durable per-item processing record. The ID is
// stable across runs: "calibre:<book id>" or "fs:<absolute path>".
// Completed rows are never reprocessed unless the store is reset.
type ItemProgress struct {
	bun.BaseModel `bun:"table:item_progress,alias:ip"`

	ID           string     `bun:",pk,nullzero"`
	CreatedAt    time.Time  `bun:",nullzero"`
	UpdatedAt    time.Time  `bun:",nullzero"`
	SourceType   string     `bun:",nullzero"`
	SourcePaths  string     `bun:",nullzero"`
	Title        *string    `bun:""`
	Status       string     `bun:",nullzero"`
	TargetPath   *string    `bun:""`
	ErrorMessage *string    `bun:""`
	ProcessedAt  *time.Time `bun:""`
}

// AuthorDate stores the earliest known publication date for an author,
// keyed by the normalized author key. The value only ever moves earlier.
type AuthorDate struct {
	bun.BaseModel `bun:"table:author_dates,alias:ad"`

	AuthorKey string    `bun:",pk,nullzero"`
	Author    string    `bun:",nullzero"`
	Year      int       `bun:",nullzero"`
	Month     int       `bun:",nullzero"`
	UpdatedAt time.Time `bun:",nullzero"`
}

// EarliestYearMonth returns the stored date as a YearMonth.
func (ad *AuthorDate) EarliestYearMonth() YearMonth {
	return YearMonth{Year: ad.Year, Month: ad.Month}
}
