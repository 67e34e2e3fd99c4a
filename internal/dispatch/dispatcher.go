// Package dispatch maps wire-level commands onto allocation engine and
// report aggregator calls. The wire format stays open strings; internally
// every command resolves through a closed handler table, so an unknown or
// malformed request can only ever produce a failed response envelope, never a
// transport error or a partial mutation.
package dispatch

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/IbrahemAmar/G11-ParkingSystem-sub000/internal/metrics"
	"github.com/IbrahemAmar/G11-ParkingSystem-sub000/internal/service"
)

// Request is the uniform inbound envelope: a command name plus an ordered
// list of opaque string parameters.
type Request struct {
	Command string   `json:"command" binding:"required"`
	Params  []string `json:"params"`
}

// Response is the uniform outbound envelope. Success=false covers every
// failure: unknown command, bad parameters, conflicts, store trouble.
type Response struct {
	Command string      `json:"command"`
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

type Command string

const (
	CmdDeposit               Command = "deposit"
	CmdReserve               Command = "reserve"
	CmdFulfillReservation    Command = "fulfill_reservation"
	CmdCancelReservation     Command = "cancel_reservation"
	CmdExtendParking         Command = "extend_parking"
	CmdRetrieve              Command = "retrieve"
	CmdGetActiveSessions     Command = "get_active_sessions"
	CmdGetHistory            Command = "get_history"
	CmdGetMonthlyParkingTime Command = "get_monthly_parking_time"
	CmdGetMonthlySubscribers Command = "get_monthly_subscriber_report"
	CmdGetSubscriber         Command = "get_subscriber"
	CmdGetAvailableSpots     Command = "get_available_spots"
)

type handlerFunc func(ctx context.Context, params []string) (data interface{}, message string, err error)

type Dispatcher struct {
	alloc    *service.AllocationService
	reports  *service.ReportService
	handlers map[Command]handlerFunc
}

func NewDispatcher(alloc *service.AllocationService, reports *service.ReportService) *Dispatcher {
	d := &Dispatcher{alloc: alloc, reports: reports}
	d.handlers = map[Command]handlerFunc{
		CmdDeposit:               d.deposit,
		CmdReserve:               d.reserve,
		CmdFulfillReservation:    d.fulfillReservation,
		CmdCancelReservation:     d.cancelReservation,
		CmdExtendParking:         d.extendParking,
		CmdRetrieve:              d.retrieve,
		CmdGetActiveSessions:     d.getActiveSessions,
		CmdGetHistory:            d.getHistory,
		CmdGetMonthlyParkingTime: d.getMonthlyParkingTime,
		CmdGetMonthlySubscribers: d.getMonthlySubscribers,
		CmdGetSubscriber:         d.getSubscriber,
		CmdGetAvailableSpots:     d.getAvailableSpots,
	}
	return d
}

// Dispatch executes one request and always returns an envelope. Concurrent
// calls are safe; ordering between connections is whatever the engine's
// atomicity yields.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) Response {
	h, ok := d.handlers[Command(req.Command)]
	if !ok {
		metrics.IncCommand(req.Command, false)
		return Response{Command: req.Command, Success: false,
			Message: fmt.Sprintf("unknown command '%s'", req.Command)}
	}

	data, message, err := h(ctx, req.Params)
	if err != nil {
		log.Printf("dispatch: %s failed: %v", req.Command, err)
		metrics.IncCommand(req.Command, false)
		return Response{Command: req.Command, Success: false, Message: err.Error()}
	}
	metrics.IncCommand(req.Command, true)
	return Response{Command: req.Command, Success: true, Message: message, Data: data}
}

// --- parameter helpers ---

func stringParam(params []string, index int, name string) (string, error) {
	if index >= len(params) || params[index] == "" {
		return "", fmt.Errorf("missing parameter %d (%s)", index+1, name)
	}
	return params[index], nil
}

func timeParam(params []string, index int, name string) (time.Time, error) {
	raw, err := stringParam(params, index, name)
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parameter %d (%s) must be RFC 3339, got '%s'", index+1, name, raw)
	}
	return t, nil
}

func intParam(params []string, index int, name string) (int, error) {
	raw, err := stringParam(params, index, name)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parameter %d (%s) must be an integer, got '%s'", index+1, name, raw)
	}
	return n, nil
}

func monthParams(params []string) (int, time.Month, error) {
	year, err := intParam(params, 0, "year")
	if err != nil {
		return 0, 0, err
	}
	monthNum, err := intParam(params, 1, "month")
	if err != nil {
		return 0, 0, err
	}
	if monthNum < 1 || monthNum > 12 {
		return 0, 0, fmt.Errorf("parameter 2 (month) must be 1..12, got %d", monthNum)
	}
	return year, time.Month(monthNum), nil
}

// --- command handlers ---

func (d *Dispatcher) deposit(ctx context.Context, params []string) (interface{}, string, error) {
	subscriberCode, err := stringParam(params, 0, "subscriber_code")
	if err != nil {
		return nil, "", err
	}
	session, err := d.alloc.Deposit(ctx, subscriberCode)
	if err != nil {
		return nil, "", err
	}
	return session, fmt.Sprintf("vehicle parked at spot %d, parking code %s", session.SpotID, session.ParkingCode), nil
}

func (d *Dispatcher) reserve(ctx context.Context, params []string) (interface{}, string, error) {
	subscriberCode, err := stringParam(params, 0, "subscriber_code")
	if err != nil {
		return nil, "", err
	}
	start, err := timeParam(params, 1, "start_time")
	if err != nil {
		return nil, "", err
	}
	res, err := d.alloc.Reserve(ctx, subscriberCode, start)
	if err != nil {
		return nil, "", err
	}
	return res, fmt.Sprintf("reservation confirmed, code %s", res.ConfirmationCode), nil
}

func (d *Dispatcher) fulfillReservation(ctx context.Context, params []string) (interface{}, string, error) {
	code, err := stringParam(params, 0, "confirmation_code")
	if err != nil {
		return nil, "", err
	}
	session, err := d.alloc.FulfillReservation(ctx, code)
	if err != nil {
		return nil, "", err
	}
	return session, fmt.Sprintf("reservation fulfilled, spot %d, parking code %s", session.SpotID, session.ParkingCode), nil
}

func (d *Dispatcher) cancelReservation(ctx context.Context, params []string) (interface{}, string, error) {
	code, err := stringParam(params, 0, "confirmation_code")
	if err != nil {
		return nil, "", err
	}
	if err := d.alloc.CancelReservation(ctx, code); err != nil {
		return nil, "", err
	}
	return nil, "reservation cancelled", nil
}

func (d *Dispatcher) extendParking(ctx context.Context, params []string) (interface{}, string, error) {
	subscriberCode, err := stringParam(params, 0, "subscriber_code")
	if err != nil {
		return nil, "", err
	}
	session, err := d.alloc.Extend(ctx, subscriberCode)
	if err != nil {
		return nil, "", err
	}
	return session, fmt.Sprintf("parking extended until %s", session.ExpectedExit.Format(time.RFC3339)), nil
}

func (d *Dispatcher) retrieve(ctx context.Context, params []string) (interface{}, string, error) {
	parkingCode, err := stringParam(params, 0, "parking_code")
	if err != nil {
		return nil, "", err
	}
	session, err := d.alloc.Retrieve(ctx, parkingCode)
	if err != nil {
		return nil, "", err
	}
	message := fmt.Sprintf("vehicle retrieved from spot %d", session.SpotID)
	if session.Late {
		message += " (late)"
	}
	return session, message, nil
}

func (d *Dispatcher) getActiveSessions(ctx context.Context, _ []string) (interface{}, string, error) {
	sessions, err := d.alloc.ActiveSessions(ctx)
	if err != nil {
		return nil, "", err
	}
	return sessions, fmt.Sprintf("%d active session(s)", len(sessions)), nil
}

func (d *Dispatcher) getHistory(ctx context.Context, params []string) (interface{}, string, error) {
	subscriberCode, err := stringParam(params, 0, "subscriber_code")
	if err != nil {
		return nil, "", err
	}
	records, err := d.alloc.HistoryBySubscriber(ctx, subscriberCode)
	if err != nil {
		return nil, "", err
	}
	return records, fmt.Sprintf("%d history record(s)", len(records)), nil
}

func (d *Dispatcher) getMonthlyParkingTime(ctx context.Context, params []string) (interface{}, string, error) {
	year, month, err := monthParams(params)
	if err != nil {
		return nil, "", err
	}
	report, err := d.reports.MonthlyParkingTime(ctx, year, month)
	if err != nil {
		return nil, "", err
	}
	return report, fmt.Sprintf("parking time report for %s %d", month, year), nil
}

func (d *Dispatcher) getMonthlySubscribers(ctx context.Context, params []string) (interface{}, string, error) {
	year, month, err := monthParams(params)
	if err != nil {
		return nil, "", err
	}
	report, err := d.reports.MonthlySubscribers(ctx, year, month)
	if err != nil {
		return nil, "", err
	}
	return report, fmt.Sprintf("subscriber report for %s %d", month, year), nil
}

func (d *Dispatcher) getSubscriber(ctx context.Context, params []string) (interface{}, string, error) {
	code, err := stringParam(params, 0, "subscriber_code")
	if err != nil {
		return nil, "", err
	}
	sub, err := d.alloc.Subscriber(ctx, code)
	if err != nil {
		return nil, "", err
	}
	return sub, "subscriber found", nil
}

func (d *Dispatcher) getAvailableSpots(ctx context.Context, _ []string) (interface{}, string, error) {
	free, total, spots, err := d.alloc.Availability(ctx)
	if err != nil {
		return nil, "", err
	}
	metrics.SetFreeSpots(free)
	data := map[string]interface{}{"free": free, "total": total, "spots": spots}
	return data, fmt.Sprintf("%d of %d spots free", free, total), nil
}
