package authordates

import (
	"context"
	"database/sql"
	"testing"

	"github.com/hondana-dev/hondana/pkg/migrations"
	"github.com/hondana-dev/hondana/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	_, err = migrations.BringUpToDate(context.Background(), db)
	require.NoError(t, err)

	t.Cleanup(func() { db.Close() })
	return db
}

func TestObserveKeepsMinimum(t *testing.T) {
	cache := NewCache(newTestDB(t))

	cache.Observe("john smith", "John Smith", &models.YearMonth{Year: 2005, Month: 6})
	cache.Observe("john smith", "John Smith", &models.YearMonth{Year: 2001, Month: 3})
	cache.Observe("john smith", "John Smith", &models.YearMonth{Year: 2010, Month: 1})

	date, ok := cache.Lookup("john smith")
	require.True(t, ok)
	assert.Equal(t, models.YearMonth{Year: 2001, Month: 3}, date)
}

func TestObserveOrderIndependent(t *testing.T) {
	dates := []*models.YearMonth{
		{Year: 2010, Month: 1},
		{Year: 2001, Month: 3},
		{Year: 2005, Month: 6},
	}

	forward := NewCache(newTestDB(t))
	for _, d := range dates {
		forward.Observe("a", "A", d)
	}

	backward := NewCache(newTestDB(t))
	for i := len(dates) - 1; i >= 0; i-- {
		backward.Observe("a", "A", dates[i])
	}

	forwardDate, _ := forward.Lookup("a")
	backwardDate, _ := backward.Lookup("a")
	assert.Equal(t, forwardDate, backwardDate)
}

func TestObserveIgnoresNilAndEmptyKey(t *testing.T) {
	cache := NewCache(newTestDB(t))

	cache.Observe("a", "A", nil)
	cache.Observe("", "", &models.YearMonth{Year: 2000, Month: 1})

	_, ok := cache.Lookup("a")
	assert.False(t, ok)
	_, ok = cache.Lookup("")
	assert.False(t, ok)
}

func TestFlushAndPreload(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	cache := NewCache(db)
	cache.Observe("john smith", "John Smith", &models.YearMonth{Year: 2001, Month: 3})
	cache.Observe("村上春樹", "村上春樹", &models.YearMonth{Year: 1979, Month: 7})
	require.NoError(t, cache.Flush(ctx))

	// A fresh cache over the same database sees the persisted entries.
	fresh := NewCache(db)
	require.NoError(t, fresh.Preload(ctx))

	date, ok := fresh.Lookup("john smith")
	require.True(t, ok)
	assert.Equal(t, models.YearMonth{Year: 2001, Month: 3}, date)

	date, ok = fresh.Lookup("村上春樹")
	require.True(t, ok)
	assert.Equal(t, models.YearMonth{Year: 1979, Month: 7}, date)
}

func TestFlushUpsertsEarlierDate(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	first := NewCache(db)
	first.Observe("a", "A", &models.YearMonth{Year: 2005, Month: 6})
	require.NoError(t, first.Flush(ctx))

	second := NewCache(db)
	require.NoError(t, second.Preload(ctx))
	second.Observe("a", "A", &models.YearMonth{Year: 2001, Month: 3})
	require.NoError(t, second.Flush(ctx))

	third := NewCache(db)
	require.NoError(t, third.Preload(ctx))
	date, ok := third.Lookup("a")
	require.True(t, ok)
	assert.Equal(t, models.YearMonth{Year: 2001, Month: 3}, date)
}

func TestFlushWithNoChangesIsNoop(t *testing.T) {
	cache := NewCache(newTestDB(t))
	require.NoError(t, cache.Flush(context.Background()))
}
