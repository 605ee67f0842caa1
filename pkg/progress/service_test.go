package progress

import (
	"context"
	"database/sql"
	"testing"

	"github.com/hondana-dev/hondana/pkg/errcodes"
	"github.com/hondana-dev/hondana/pkg/migrations"
	"github.com/hondana-dev/hondana/pkg/models"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func newTestService(t *testing.T) *Service {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	_, err = migrations.BringUpToDate(context.Background(), db)
	require.NoError(t, err)

	t.Cleanup(func() { db.Close() })
	return NewService(db)
}

func testItems(ids ...string) []*models.ItemProgress {
	items := make([]*models.ItemProgress, 0, len(ids))
	for _, id := range ids {
		items = append(items, &models.ItemProgress{
			ID:          id,
			SourceType:  models.ItemSourceCalibre,
			SourcePaths: `[{"Path":"/books/a.epub","Ext":"epub"}]`,
		})
	}
	return items
}

func TestRegister(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	require.NoError(t, svc.Register(ctx, testItems("calibre:1", "calibre:2")))

	item, err := svc.Retrieve(ctx, "calibre:1")
	require.NoError(t, err)
	assert.Equal(t, models.ItemStatusPending, item.Status)
}

func TestRegisterKeepsExistingStatus(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	require.NoError(t, svc.Register(ctx, testItems("calibre:1")))
	require.NoError(t, svc.MarkCompleted(ctx, "calibre:1", "/organized/somewhere"))

	// Re-enumeration must not flip a completed item back to pending.
	require.NoError(t, svc.Register(ctx, testItems("calibre:1")))

	item, err := svc.Retrieve(ctx, "calibre:1")
	require.NoError(t, err)
	assert.Equal(t, models.ItemStatusCompleted, item.Status)
	require.NotNil(t, item.TargetPath)
	assert.Equal(t, "/organized/somewhere", *item.TargetPath)
}

func TestRetrieveMissing(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Retrieve(context.Background(), "calibre:999")
	var appErr *errcodes.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "not_found", appErr.Code)
}

func TestListByStatusOrderedByID(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	require.NoError(t, svc.Register(ctx, testItems("calibre:3", "calibre:1", "calibre:2")))

	items, err := svc.ListByStatus(ctx, models.ItemStatusPending)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "calibre:1", items[0].ID)
	assert.Equal(t, "calibre:2", items[1].ID)
	assert.Equal(t, "calibre:3", items[2].ID)
}

func TestMarkFailedAndResetFailed(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	require.NoError(t, svc.Register(ctx, testItems("calibre:1", "calibre:2")))
	require.NoError(t, svc.MarkFailed(ctx, "calibre:1", "copy failed"))

	item, err := svc.Retrieve(ctx, "calibre:1")
	require.NoError(t, err)
	assert.Equal(t, models.ItemStatusFailed, item.Status)
	require.NotNil(t, item.ErrorMessage)
	assert.Equal(t, "copy failed", *item.ErrorMessage)

	count, err := svc.ResetFailed(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	item, err = svc.Retrieve(ctx, "calibre:1")
	require.NoError(t, err)
	assert.Equal(t, models.ItemStatusPending, item.Status)
	assert.Nil(t, item.ErrorMessage)
}

func TestMarkCompletedClearsError(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	require.NoError(t, svc.Register(ctx, testItems("calibre:1")))
	require.NoError(t, svc.MarkFailed(ctx, "calibre:1", "transient"))
	require.NoError(t, svc.MarkCompleted(ctx, "calibre:1", "/organized/path"))

	item, err := svc.Retrieve(ctx, "calibre:1")
	require.NoError(t, err)
	assert.Equal(t, models.ItemStatusCompleted, item.Status)
	assert.Nil(t, item.ErrorMessage)
	require.NotNil(t, item.ProcessedAt)
}

func TestStatistics(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	require.NoError(t, svc.Register(ctx, testItems("calibre:1", "calibre:2", "calibre:3")))
	require.NoError(t, svc.MarkCompleted(ctx, "calibre:1", "/a"))
	require.NoError(t, svc.MarkFailed(ctx, "calibre:2", "boom"))

	stats, err := svc.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, &Stats{Total: 3, Pending: 1, Completed: 1, Failed: 1}, stats)
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	require.NoError(t, svc.Register(ctx, testItems("calibre:1", "calibre:2")))
	require.NoError(t, svc.Reset(ctx))

	stats, err := svc.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Total)
}
