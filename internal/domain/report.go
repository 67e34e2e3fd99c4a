package domain

import "time"

// MonthlyParkingTimeReport buckets the total parked hours of a month by the
// final session flags: late sessions count as delayed, otherwise extended
// sessions as extended, everything else as normal.
type MonthlyParkingTimeReport struct {
	Year          int        `json:"year"`
	Month         time.Month `json:"month"`
	NormalHours   float64    `json:"normal_hours"`
	ExtendedHours float64    `json:"extended_hours"`
	DelayedHours  float64    `json:"delayed_hours"`
	TotalSessions int        `json:"total_sessions"`
}

// MonthlySubscriberReport counts, for every day of the month, the distinct
// subscribers with at least one session entered that day. DailyCounts always
// has one entry per calendar day, all zero for an empty month.
type MonthlySubscriberReport struct {
	Year          int        `json:"year"`
	Month         time.Month `json:"month"`
	DailyCounts   []int      `json:"daily_counts"`
	TotalDistinct int        `json:"total_distinct"`
}
