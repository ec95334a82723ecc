package maintenance

import (
	"context"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/require"

	testutil "github.com/kisansathi/gateway/internal/database/testutil"
	"github.com/kisansathi/gateway/internal/models"
	"github.com/kisansathi/gateway/internal/store"
)

func TestRunOnceSweepsExpiredCache(t *testing.T) {
	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	st, err := store.NewWithDB(testutil.MustOpenTestDB(t), store.WithNow(func() time.Time { return now }))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, st.CacheResponse(ctx, "stale", map[string]any{"v": 1}, -time.Hour))
	require.NoError(t, st.CacheResponse(ctx, "fresh", map[string]any{"v": 2}, time.Hour))

	cleaner := NewCleaner(st, WithNow(func() time.Time { return now }))
	require.NoError(t, cleaner.RunOnce(ctx))

	_, ok, err := st.GetCachedResponse(ctx, "fresh")
	require.NoError(t, err)
	require.True(t, ok)

	removed, err := st.ClearExpiredCache(ctx)
	require.NoError(t, err)
	require.Zero(t, removed)
}

func TestRunOncePrunesSyncedHistory(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	st, err := store.NewWithDB(db)
	require.NoError(t, err)

	ctx := context.Background()
	oldID, err := st.SaveCropAnalysis(ctx, map[string]any{"crop": "wheat"})
	require.NoError(t, err)
	require.NoError(t, st.MarkSynced(ctx, oldID))

	// Age the synced record past the retention window.
	require.NoError(t, db.Model(&models.PendingRecord{}).
		Where("id = ?", oldID).
		Update("created_at", time.Now().Add(-10*24*time.Hour)).Error)

	pendingID, err := st.SaveCropAnalysis(ctx, map[string]any{"crop": "rice"})
	require.NoError(t, err)

	cleaner := NewCleaner(st, WithSyncedRetention(7*24*time.Hour))
	require.NoError(t, cleaner.RunOnce(ctx))

	var count int64
	require.NoError(t, db.Model(&models.PendingRecord{}).Where("id = ?", oldID).Count(&count).Error)
	require.Zero(t, count)

	require.NoError(t, db.Model(&models.PendingRecord{}).Where("id = ?", pendingID).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestStartRegistersJobs(t *testing.T) {
	st, err := store.NewWithDB(testutil.MustOpenTestDB(t))
	require.NoError(t, err)

	sched := cron.New(cron.WithLogger(cron.DiscardLogger))
	cleaner := NewCleaner(st, WithCron(sched), WithCacheSchedule("@every 1h"), WithSyncedSchedule("@every 24h"))

	require.NoError(t, cleaner.Start())
	require.Len(t, sched.Entries(), 2)
	<-cleaner.Stop().Done()
}

func TestCleanerWithoutStoreIsNoop(t *testing.T) {
	cleaner := NewCleaner(nil)
	require.NoError(t, cleaner.Start())
	require.NoError(t, cleaner.RunOnce(context.Background()))
}
