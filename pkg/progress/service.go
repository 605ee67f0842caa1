// Package progress is the durable per-item processing ledger. Every
// enumerated item gets a row; the row's status is what makes runs
// resumable and retries safe.
package progress

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/hondana-dev/hondana/pkg/errcodes"
	"github.com/hondana-dev/hondana/pkg/models"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db}
}

// Stats summarizes the store by status.
type Stats struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// Register inserts pending rows for items not yet in the store. Existing
// rows keep their status, which is what makes re-enumeration on resume a
// no-op for finished work.
func (svc *Service) Register(ctx context.Context, items []*models.ItemProgress) error {
	if len(items) == 0 {
		return nil
	}

	now := time.Now()
	for _, item := range items {
		item.CreatedAt = now
		item.UpdatedAt = now
		if item.Status == "" {
			item.Status = models.ItemStatusPending
		}
	}

	_, err := svc.db.NewInsert().
		Model(&items).
		On("CONFLICT (id) DO NOTHING").
		Exec(ctx)
	return svc.wrap(err)
}

// Retrieve returns one row, or a not found error.
func (svc *Service) Retrieve(ctx context.Context, id string) (*models.ItemProgress, error) {
	item := &models.ItemProgress{}
	err := svc.db.NewSelect().
		Model(item).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("item")
		}
		return nil, svc.wrap(err)
	}
	return item, nil
}

// ListByStatus returns rows with the given status ordered by ID, so
// processing order is stable across runs.
func (svc *Service) ListByStatus(ctx context.Context, status string) ([]*models.ItemProgress, error) {
	items := []*models.ItemProgress{}
	err := svc.db.NewSelect().
		Model(&items).
		Where("status = ?", status).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, svc.wrap(err)
	}
	return items, nil
}

// MarkCompleted records a successful copy with its destination.
func (svc *Service) MarkCompleted(ctx context.Context, id, targetPath string) error {
	now := time.Now()
	_, err := svc.db.NewUpdate().
		Model((*models.ItemProgress)(nil)).
		Set("status = ?", models.ItemStatusCompleted).
		Set("target_path = ?", targetPath).
		Set("error_message = NULL").
		Set("processed_at = ?", now).
		Set("updated_at = ?", now).
		Where("id = ?", id).
		Exec(ctx)
	return svc.wrap(err)
}

// MarkFailed records a failure with its message. The item stays in the
// store and is picked up again by a retry-failed run.
func (svc *Service) MarkFailed(ctx context.Context, id, message string) error {
	now := time.Now()
	_, err := svc.db.NewUpdate().
		Model((*models.ItemProgress)(nil)).
		Set("status = ?", models.ItemStatusFailed).
		Set("error_message = ?", message).
		Set("processed_at = ?", now).
		Set("updated_at = ?", now).
		Where("id = ?", id).
		Exec(ctx)
	return svc.wrap(err)
}

// SetTitle stores the resolved title for reporting.
func (svc *Service) SetTitle(ctx context.Context, id, title string) error {
	_, err := svc.db.NewUpdate().
		Model((*models.ItemProgress)(nil)).
		Set("title = ?", title).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Exec(ctx)
	return svc.wrap(err)
}

// ResetFailed flips failed rows back to pending so they are retried.
func (svc *Service) ResetFailed(ctx context.Context) (int, error) {
	res, err := svc.db.NewUpdate().
		Model((*models.ItemProgress)(nil)).
		Set("status = ?", models.ItemStatusPending).
		Set("error_message = NULL").
		Set("updated_at = ?", time.Now()).
		Where("status = ?", models.ItemStatusFailed).
		Exec(ctx)
	if err != nil {
		return 0, svc.wrap(err)
	}
	count, err := res.RowsAffected()
	if err != nil {
		return 0, errors.WithStack(err)
	}
	return int(count), nil
}

// Reset deletes every row. A following run starts from scratch.
func (svc *Service) Reset(ctx context.Context) error {
	_, err := svc.db.NewDelete().
		Model((*models.ItemProgress)(nil)).
		Where("1 = 1").
		Exec(ctx)
	return svc.wrap(err)
}

// Statistics counts rows per status.
func (svc *Service) Statistics(ctx context.Context) (*Stats, error) {
	type statusCount struct {
		Status string `bun:"status"`
		Count  int    `bun:"count"`
	}
	counts := []statusCount{}
	err := svc.db.NewSelect().
		Model((*models.ItemProgress)(nil)).
		ColumnExpr("status, count(*) AS count").
		Group("status").
		Scan(ctx, &counts)
	if err != nil {
		return nil, svc.wrap(err)
	}

	stats := &Stats{}
	for _, c := range counts {
		stats.Total += c.Count
		switch c.Status {
		case models.ItemStatusPending:
			stats.Pending = c.Count
		case models.ItemStatusCompleted:
			stats.Completed = c.Count
		case models.ItemStatusFailed:
			stats.Failed = c.Count
		}
	}
	return stats, nil
}

// wrap maps low-level sqlite corruption onto a store corruption error so
// callers can tell the user to delete the progress database, and adds a
// stack to everything else.
func (svc *Service) wrap(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if strings.Contains(msg, "database disk image is malformed") || strings.Contains(msg, "file is not a database") {
		return errors.WithStack(errcodes.StoreCorrupted("progress", msg))
	}
	return errors.WithStack(err)
}
