// Package authordates maintains the earliest known publication date per
// author. The date decides the "[YYYY-MM] Author" folder prefix, so it
// must be stable across runs: observations only ever move a date
// earlier, and the cache is persisted alongside the progress store.
package authordates

import (
	"context"
	"sync"
	"time"

	"github.com/hondana-dev/hondana/pkg/models"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

type Cache struct {
	db *bun.DB

	mu    sync.Mutex
	dates map[string]models.YearMonth
	names map[string]string
	dirty map[string]bool
}

func NewCache(db *bun.DB) *Cache {
	return &Cache{
		db:    db,
		dates: map[string]models.YearMonth{},
		names: map[string]string{},
		dirty: map[string]bool{},
	}
}

// Preload fills the in-memory cache from the persisted table. Called
// once per run, before any items are processed.
func (c *Cache) Preload(ctx context.Context) error {
	rows := []*models.AuthorDate{}
	err := c.db.NewSelect().Model(&rows).Scan(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, row := range rows {
		c.dates[row.AuthorKey] = row.EarliestYearMonth()
		c.names[row.AuthorKey] = row.Author
	}
	return nil
}

// Observe records a publication date for an author, keeping the minimum.
// A nil date is a no-op. Observation order never changes the outcome.
func (c *Cache) Observe(authorKey, author string, date *models.YearMonth) {
	if date == nil || authorKey == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	current, ok := c.dates[authorKey]
	if ok && !date.Before(current) {
		return
	}
	c.dates[authorKey] = *date
	c.names[authorKey] = author
	c.dirty[authorKey] = true
}

// Lookup returns the earliest known date for an author, if any.
func (c *Cache) Lookup(authorKey string) (models.YearMonth, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	date, ok := c.dates[authorKey]
	return date, ok
}

// Flush writes every changed entry back to the database.
func (c *Cache) Flush(ctx context.Context) error {
	c.mu.Lock()
	rows := make([]*models.AuthorDate, 0, len(c.dirty))
	for key := range c.dirty {
		date := c.dates[key]
		rows = append(rows, &models.AuthorDate{
			AuthorKey: key,
			Author:    c.names[key],
			Year:      date.Year,
			Month:     date.Month,
			UpdatedAt: time.Now(),
		})
	}
	c.dirty = map[string]bool{}
	c.mu.Unlock()

	if len(rows) == 0 {
		return nil
	}

	_, err := c.db.NewInsert().
		Model(&rows).
		On("CONFLICT (author_key) DO UPDATE").
		Set("author = EXCLUDED.author").
		Set("year = EXCLUDED.year").
		Set("month = EXCLUDED.month").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return errors.WithStack(err)
}
