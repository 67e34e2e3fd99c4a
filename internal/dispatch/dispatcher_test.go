package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IbrahemAmar/G11-ParkingSystem-sub000/internal/domain"
	"github.com/IbrahemAmar/G11-ParkingSystem-sub000/internal/repository/memory"
	"github.com/IbrahemAmar/G11-ParkingSystem-sub000/internal/service"
)

func newTestDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	ctx := context.Background()

	store := memory.NewStore()
	require.NoError(t, store.Spots().EnsurePool(ctx, 3))
	for _, code := range []string{"sub-1", "sub-2"} {
		_, err := store.Subscribers().Create(ctx, &domain.Subscriber{Code: code, Name: "Subscriber " + code})
		require.NoError(t, err)
	}

	alloc := service.NewAllocationService(store, nil, service.DefaultConfig())
	return NewDispatcher(alloc, service.NewReportService(store, 0))
}

func TestDispatchUnknownCommand(t *testing.T) {
	d := newTestDispatcher(t)

	resp := d.Dispatch(context.Background(), Request{Command: "open_sesame"})

	assert.Equal(t, "open_sesame", resp.Command)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Message, "unknown command")
	assert.Nil(t, resp.Data)
}

func TestDispatchParameterValidation(t *testing.T) {
	d := newTestDispatcher(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		req     Request
		message string
	}{
		{"missing subscriber code", Request{Command: "deposit"}, "missing parameter 1 (subscriber_code)"},
		{"empty subscriber code", Request{Command: "deposit", Params: []string{""}}, "missing parameter 1 (subscriber_code)"},
		{"bad start time", Request{Command: "reserve", Params: []string{"sub-1", "tomorrow"}}, "must be RFC 3339"},
		{"non-numeric year", Request{Command: "get_monthly_parking_time", Params: []string{"twenty", "3"}}, "must be an integer"},
		{"month out of range", Request{Command: "get_monthly_parking_time", Params: []string{"2025", "13"}}, "must be 1..12"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp := d.Dispatch(ctx, tc.req)
			assert.False(t, resp.Success)
			assert.Contains(t, resp.Message, tc.message)
		})
	}
}

func TestDispatchDepositAndRetrieve(t *testing.T) {
	d := newTestDispatcher(t)
	ctx := context.Background()

	resp := d.Dispatch(ctx, Request{Command: "deposit", Params: []string{"sub-1"}})
	require.True(t, resp.Success, resp.Message)
	session, ok := resp.Data.(*domain.ParkingSession)
	require.True(t, ok)
	assert.Contains(t, resp.Message, session.ParkingCode)

	// Domain conflicts surface as failed envelopes, not panics or transport errors.
	resp = d.Dispatch(ctx, Request{Command: "deposit", Params: []string{"sub-1"}})
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Message, "already has an open parking session")

	resp = d.Dispatch(ctx, Request{Command: "retrieve", Params: []string{session.ParkingCode}})
	require.True(t, resp.Success, resp.Message)
	assert.Contains(t, resp.Message, "vehicle retrieved")
}

func TestDispatchReservationFlow(t *testing.T) {
	d := newTestDispatcher(t)
	ctx := context.Background()

	start := time.Now().UTC().Add(48 * time.Hour).Truncate(time.Second)
	resp := d.Dispatch(ctx, Request{Command: "reserve", Params: []string{"sub-1", start.Format(time.RFC3339)}})
	require.True(t, resp.Success, resp.Message)
	res, ok := resp.Data.(*domain.Reservation)
	require.True(t, ok)

	resp = d.Dispatch(ctx, Request{Command: "cancel_reservation", Params: []string{res.ConfirmationCode}})
	require.True(t, resp.Success, resp.Message)
	assert.Equal(t, "reservation cancelled", resp.Message)

	resp = d.Dispatch(ctx, Request{Command: "cancel_reservation", Params: []string{res.ConfirmationCode}})
	assert.False(t, resp.Success)
}

func TestDispatchQueries(t *testing.T) {
	d := newTestDispatcher(t)
	ctx := context.Background()

	resp := d.Dispatch(ctx, Request{Command: "get_active_sessions"})
	require.True(t, resp.Success)
	assert.Equal(t, "0 active session(s)", resp.Message)

	resp = d.Dispatch(ctx, Request{Command: "get_available_spots"})
	require.True(t, resp.Success)
	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 3, data["free"])
	assert.Equal(t, 3, data["total"])

	resp = d.Dispatch(ctx, Request{Command: "get_subscriber", Params: []string{"sub-2"}})
	require.True(t, resp.Success)
	sub, ok := resp.Data.(*domain.Subscriber)
	require.True(t, ok)
	assert.Equal(t, "sub-2", sub.Code)

	resp = d.Dispatch(ctx, Request{Command: "get_subscriber", Params: []string{"ghost"}})
	assert.False(t, resp.Success)

	resp = d.Dispatch(ctx, Request{Command: "get_monthly_parking_time", Params: []string{"2025", "3"}})
	require.True(t, resp.Success)
	report, ok := resp.Data.(*domain.MonthlyParkingTimeReport)
	require.True(t, ok)
	assert.Zero(t, report.TotalSessions)

	resp = d.Dispatch(ctx, Request{Command: "get_monthly_subscriber_report", Params: []string{"2025", "4"}})
	require.True(t, resp.Success)
	subReport, ok := resp.Data.(*domain.MonthlySubscriberReport)
	require.True(t, ok)
	assert.Len(t, subReport.DailyCounts, 30)
}
