package service

import (
	"context"
	"time"

	"github.com/IbrahemAmar/G11-ParkingSystem-sub000/internal/domain"
	"github.com/IbrahemAmar/G11-ParkingSystem-sub000/internal/repository"
)

// ReportService computes monthly aggregates from the immutable parking
// history. It only reads, so it needs no engine lock; a month whose history
// is still being written simply reflects the rows committed so far.
type ReportService struct {
	store        repository.Store
	storeTimeout time.Duration
}

func NewReportService(store repository.Store, storeTimeout time.Duration) *ReportService {
	if storeTimeout <= 0 {
		storeTimeout = DefaultConfig().StoreTimeout
	}
	return &ReportService{store: store, storeTimeout: storeTimeout}
}

// MonthlyParkingTime buckets the month's parked hours by final session flags:
// late sessions into delayed, otherwise extended into extended, the rest into
// normal. A month with no rows yields an all-zero report.
func (s *ReportService) MonthlyParkingTime(ctx context.Context, year int, month time.Month) (*domain.MonthlyParkingTimeReport, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	records, err := s.store.History().FindByEntryMonth(opCtx, year, month)
	if err != nil {
		return nil, err
	}

	report := &domain.MonthlyParkingTimeReport{Year: year, Month: month}
	for _, record := range records {
		hours := record.ExitTime.Sub(record.EntryTime).Hours()
		switch {
		case record.Late:
			report.DelayedHours += hours
		case record.Extended:
			report.ExtendedHours += hours
		default:
			report.NormalHours += hours
		}
		report.TotalSessions++
	}
	return report, nil
}

// MonthlySubscribers counts distinct subscribers per calendar day of the
// month. DailyCounts always spans the whole month, zero-filled when empty.
func (s *ReportService) MonthlySubscribers(ctx context.Context, year int, month time.Month) (*domain.MonthlySubscriberReport, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	records, err := s.store.History().FindByEntryMonth(opCtx, year, month)
	if err != nil {
		return nil, err
	}

	days := daysInMonth(year, month)
	perDay := make([]map[string]struct{}, days)
	monthly := make(map[string]struct{})
	for _, record := range records {
		day := record.EntryTime.UTC().Day() - 1
		if perDay[day] == nil {
			perDay[day] = make(map[string]struct{})
		}
		perDay[day][record.SubscriberCode] = struct{}{}
		monthly[record.SubscriberCode] = struct{}{}
	}

	report := &domain.MonthlySubscriberReport{
		Year:          year,
		Month:         month,
		DailyCounts:   make([]int, days),
		TotalDistinct: len(monthly),
	}
	for i, set := range perDay {
		report.DailyCounts[i] = len(set)
	}
	return report, nil
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
