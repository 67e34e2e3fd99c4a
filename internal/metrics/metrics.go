package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	commandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "parking",
			Name:      "commands_total",
			Help:      "Dispatched commands by name and outcome.",
		},
		[]string{"command", "outcome"},
	)

	sweepsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "parking",
			Name:      "expiry_sweeps_total",
			Help:      "Completed expiry sweeps.",
		},
	)

	lateSessionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "parking",
			Name:      "late_sessions_total",
			Help:      "Sessions marked late by the sweeper.",
		},
	)

	expiredReservationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "parking",
			Name:      "expired_reservations_total",
			Help:      "Reservations expired unfulfilled by the sweeper.",
		},
	)

	freeSpots = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "parking",
			Name:      "free_spots",
			Help:      "Currently free parking spots.",
		},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(commandsTotal, sweepsTotal, lateSessionsTotal,
			expiredReservationsTotal, freeSpots)
	})
}

func IncCommand(command string, success bool) {
	outcome := "ok"
	if !success {
		outcome = "failed"
	}
	commandsTotal.WithLabelValues(command, outcome).Inc()
}

func ObserveSweep(lateSessions, expiredReservations int) {
	sweepsTotal.Inc()
	lateSessionsTotal.Add(float64(lateSessions))
	expiredReservationsTotal.Add(float64(expiredReservations))
}

func SetFreeSpots(n int) {
	freeSpots.Set(float64(n))
}
