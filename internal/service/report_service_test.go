package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IbrahemAmar/G11-ParkingSystem-sub000/internal/domain"
	"github.com/IbrahemAmar/G11-ParkingSystem-sub000/internal/repository/memory"
)

func seedHistory(t *testing.T, store *memory.Store, subscriber string, entry time.Time, hours float64, extended, late bool) {
	t.Helper()
	_, err := store.History().Create(context.Background(), &domain.ParkingHistory{
		SubscriberCode: subscriber,
		SpotID:         1,
		EntryTime:      entry,
		ExitTime:       entry.Add(time.Duration(hours * float64(time.Hour))),
		Extended:       extended,
		Late:           late,
	})
	require.NoError(t, err)
}

func TestNewReportServiceTimeout(t *testing.T) {
	store := memory.NewStore()

	assert.Equal(t, 2*time.Second, NewReportService(store, 2*time.Second).storeTimeout)
	assert.Equal(t, DefaultConfig().StoreTimeout, NewReportService(store, 0).storeTimeout)
}

func TestMonthlyParkingTime(t *testing.T) {
	ctx := context.Background()

	t.Run("buckets hours by final session flags", func(t *testing.T) {
		store := memory.NewStore()
		march := time.Date(2025, time.March, 3, 8, 0, 0, 0, time.UTC)

		seedHistory(t, store, "sub-1", march, 4, false, false)
		seedHistory(t, store, "sub-2", march.Add(24*time.Hour), 8, true, false)
		seedHistory(t, store, "sub-3", march.Add(48*time.Hour), 5, false, true)
		// Late takes precedence over extended.
		seedHistory(t, store, "sub-4", march.Add(72*time.Hour), 9, true, true)
		// Outside the month, must not be counted.
		seedHistory(t, store, "sub-1", march.AddDate(0, 1, 0), 4, false, false)

		report, err := NewReportService(store, 0).MonthlyParkingTime(ctx, 2025, time.March)
		require.NoError(t, err)

		assert.Equal(t, 2025, report.Year)
		assert.Equal(t, time.March, report.Month)
		assert.InDelta(t, 4, report.NormalHours, 0.001)
		assert.InDelta(t, 8, report.ExtendedHours, 0.001)
		assert.InDelta(t, 14, report.DelayedHours, 0.001)
		assert.Equal(t, 4, report.TotalSessions)
	})

	t.Run("empty month yields an all-zero report", func(t *testing.T) {
		report, err := NewReportService(memory.NewStore(), 0).MonthlyParkingTime(ctx, 2025, time.January)
		require.NoError(t, err)

		assert.Zero(t, report.NormalHours)
		assert.Zero(t, report.ExtendedHours)
		assert.Zero(t, report.DelayedHours)
		assert.Zero(t, report.TotalSessions)
	})
}

func TestMonthlySubscribers(t *testing.T) {
	ctx := context.Background()

	t.Run("counts distinct subscribers per day", func(t *testing.T) {
		store := memory.NewStore()
		feb1 := time.Date(2025, time.February, 1, 7, 0, 0, 0, time.UTC)

		seedHistory(t, store, "sub-1", feb1, 2, false, false)
		seedHistory(t, store, "sub-1", feb1.Add(6*time.Hour), 2, false, false) // same day, same subscriber
		seedHistory(t, store, "sub-2", feb1.Add(8*time.Hour), 2, false, false)
		seedHistory(t, store, "sub-1", feb1.AddDate(0, 0, 13), 2, false, false)

		report, err := NewReportService(store, 0).MonthlySubscribers(ctx, 2025, time.February)
		require.NoError(t, err)

		require.Len(t, report.DailyCounts, 28)
		assert.Equal(t, 2, report.DailyCounts[0])
		assert.Equal(t, 1, report.DailyCounts[13])
		assert.Equal(t, 0, report.DailyCounts[1])
		assert.Equal(t, 2, report.TotalDistinct)
	})

	t.Run("empty month spans every calendar day with zeros", func(t *testing.T) {
		report, err := NewReportService(memory.NewStore(), 0).MonthlySubscribers(ctx, 2024, time.February)
		require.NoError(t, err)

		require.Len(t, report.DailyCounts, 29) // leap year
		for day, count := range report.DailyCounts {
			assert.Zero(t, count, "day %d", day+1)
		}
		assert.Zero(t, report.TotalDistinct)
	})
}
