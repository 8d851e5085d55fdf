package parking

import "time"

// DailyFreeMinutes is the per-day credit for the 11 hour overnight closure.
const DailyFreeMinutes int64 = 660

const (
	openingHour = 8
	closingHour = 21
)

type role int

const (
	roleArrival role = iota
	roleDeparture
)

// BillableMinutes returns the chargeable minutes between registration and
// de-registration. Both instants are read as wall-clock values in their own
// location, so callers convert them to the city's location first.
//
// Overnight instants (strictly after 21:00 or strictly before 08:00) are moved
// to 08:00 for an arrival and to 21:00 for a departure, on the same date.
// Every whole day between the adjusted instants credits DailyFreeMinutes.
// Time after 08:00 on a Sunday departure day and before 21:00 on a Sunday
// arrival day is free, and a stay that starts and ends on the same Sunday
// costs nothing. The result is never negative.
func BillableMinutes(registeredAt, deregisteredAt time.Time) int64 {
	start := snapOvernight(wallClock(registeredAt), roleArrival)
	end := snapOvernight(wallClock(deregisteredAt), roleDeparture)

	if start.Weekday() == time.Sunday && end.Weekday() == time.Sunday && sameDate(start, end) {
		return 0
	}

	minutes := wholeMinutes(start, end)

	if days := int64(end.Sub(start) / (24 * time.Hour)); days > 0 {
		minutes -= days * DailyFreeMinutes
	}
	if end.Weekday() == time.Sunday {
		minutes -= wholeMinutes(atHour(end, openingHour), end)
	}
	if start.Weekday() == time.Sunday {
		minutes -= wholeMinutes(start, atHour(start, closingHour))
	}

	if minutes < 0 {
		return 0
	}
	return minutes
}

// wallClock drops the zone and sub-second part so minute and day arithmetic
// follows the calendar even across DST changes.
func wallClock(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
}

func atHour(t time.Time, hour int) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), hour, 0, 0, 0, t.Location())
}

func inOvernightWindow(t time.Time) bool {
	return t.After(atHour(t, closingHour)) || t.Before(atHour(t, openingHour))
}

func snapOvernight(t time.Time, r role) time.Time {
	if !inOvernightWindow(t) {
		return t
	}
	if r == roleArrival {
		return atHour(t, openingHour)
	}
	return atHour(t, closingHour)
}

func wholeMinutes(from, to time.Time) int64 {
	return int64(to.Sub(from) / time.Minute)
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
