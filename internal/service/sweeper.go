package service

import (
	"context"
	"log"

	"github.com/IbrahemAmar/G11-ParkingSystem-sub000/internal/domain"
)

// SweepResult summarizes one expiry sweep.
type SweepResult struct {
	LateSessions        int
	ExpiredReservations int
}

// SweepOverdue marks open sessions past their expected exit as late (they
// stay open until retrieved) and expires active reservations whose
// fulfillment grace window has elapsed. The sweep takes the same engine lock
// and transaction as every other operation and is idempotent: sessions
// already late and reservations already expired are skipped, so re-running
// never emits duplicate events.
func (s *AllocationService) SweepOverdue(ctx context.Context) (SweepResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var lateSessions []domain.ParkingSession
	var expired []domain.Reservation
	err := s.withStore(ctx, func(ctx context.Context) error {
		lateSessions = lateSessions[:0]
		expired = expired[:0]

		now := s.now()
		open, err := s.store.Sessions().FindAllOpen(ctx)
		if err != nil {
			return err
		}
		for _, session := range open {
			if session.Late || !now.After(session.ExpectedExit) {
				continue
			}
			session.Late = true
			if _, err := s.store.Sessions().Update(ctx, &session); err != nil {
				return err
			}
			lateSessions = append(lateSessions, session)
		}

		candidates, err := s.store.Reservations().FindActiveStartedBefore(ctx, now.Add(-s.cfg.FulfillGrace))
		if err != nil {
			return err
		}
		for _, res := range candidates {
			res.Status = domain.ReservationExpired
			if _, err := s.store.Reservations().Update(ctx, &res); err != nil {
				return err
			}
			expired = append(expired, res)
		}
		return nil
	})
	if err != nil {
		return SweepResult{}, err
	}

	for _, session := range lateSessions {
		log.Printf("sweep: session %d (subscriber %s, spot %d) is late",
			session.ID, session.SubscriberCode, session.SpotID)
		s.notify(session.SubscriberCode, domain.EventLateSession, map[string]interface{}{
			"spot_id":            session.SpotID,
			"parking_code":       session.ParkingCode,
			"expected_exit_time": session.ExpectedExit,
		})
	}
	for _, res := range expired {
		log.Printf("sweep: reservation %s (subscriber %s) expired unfulfilled",
			res.ConfirmationCode, res.SubscriberCode)
		s.notify(res.SubscriberCode, domain.EventReservationExpired, map[string]interface{}{
			"confirmation_code": res.ConfirmationCode,
			"start_time":        res.StartTime,
		})
	}
	return SweepResult{LateSessions: len(lateSessions), ExpiredReservations: len(expired)}, nil
}
