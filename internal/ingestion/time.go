package ingestion

import "time"

// NewTimeRecord derives the time dimension row for an epoch-millisecond timestamp.
// The calendar fields are computed in UTC.
func NewTimeRecord(epochMillis int64) TimeRecord {
	t := time.UnixMilli(epochMillis).UTC()
	_, week := t.ISOWeek()

	return TimeRecord{
		StartTime: t,
		Hour:      t.Hour(),
		Day:       t.Day(),
		Week:      week,
		Month:     int(t.Month()),
		Year:      t.Year(),
		Weekday:   mondayFirstWeekday(t.Weekday()),
	}
}

// mondayFirstWeekday maps time.Sunday..time.Saturday (0..6) to Monday=0..Sunday=6.
func mondayFirstWeekday(d time.Weekday) int {
	const daysPerWeek = 7

	return (int(d) + daysPerWeek - 1) % daysPerWeek
}
