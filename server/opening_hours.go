package server

import (
	"strconv"
	"strings"
	"time"
)

// DayHours is one weekday's entry in a restaurant's weekly schedule. When
// Open is true and both clock times are set, the restaurant is open inside
// [OpenTime, CloseTime); when the times are absent the raw Open flag wins.
type DayHours struct {
	Open      bool   `json:"open"`
	OpenTime  string `json:"openTime,omitempty"`
	CloseTime string `json:"closeTime,omitempty"`
}

// WeeklyHours maps lowercase weekday names ("monday" ... "sunday") to their
// schedule entry. Absent days count as closed.
type WeeklyHours map[string]DayHours

var weekdayKeys = map[time.Weekday]string{
	time.Sunday:    "sunday",
	time.Monday:    "monday",
	time.Tuesday:   "tuesday",
	time.Wednesday: "wednesday",
	time.Thursday:  "thursday",
	time.Friday:    "friday",
	time.Saturday:  "saturday",
}

// OpenAt derives whether a restaurant following this schedule is open at
// the given instant. A closing time earlier than the opening time is an
// overnight window that wraps past midnight.
func (h WeeklyHours) OpenAt(now time.Time) bool {
	today, ok := h[weekdayKeys[now.Weekday()]]
	if !ok || !today.Open {
		return false
	}

	openMin, okOpen := parseClock(today.OpenTime)
	closeMin, okClose := parseClock(today.CloseTime)
	if !okOpen || !okClose {
		// No explicit times; the raw open flag decides.
		return today.Open
	}

	minute := now.Hour()*60 + now.Minute()
	if openMin <= closeMin {
		return minute >= openMin && minute < closeMin
	}
	// Overnight window, e.g. 22:00-02:00.
	return minute >= openMin || minute < closeMin
}

// BoundaryWithin reports whether today's schedule entry has an opening or
// closing minute landing exactly on the current or the immediately
// following minute. The status reconciler uses it to skip restaurants with
// no imminent transition; it is an efficiency filter, not a correctness
// gate.
func (h WeeklyHours) BoundaryWithin(now time.Time) bool {
	today, ok := h[weekdayKeys[now.Weekday()]]
	if !ok || !today.Open {
		return false
	}

	openMin, okOpen := parseClock(today.OpenTime)
	closeMin, okClose := parseClock(today.CloseTime)
	if !okOpen || !okClose {
		return false
	}

	minute := now.Hour()*60 + now.Minute()
	next := minute + 1
	return minute == openMin || next == openMin || minute == closeMin || next == closeMin
}

// parseClock converts an "HH:MM" string to minutes since midnight.
func parseClock(s string) (int, bool) {
	hh, mm, ok := strings.Cut(s, ":")
	if !ok {
		return 0, false
	}
	hour, err := strconv.Atoi(hh)
	if err != nil || hour < 0 || hour > 23 {
		return 0, false
	}
	minute, err := strconv.Atoi(mm)
	if err != nil || minute < 0 || minute > 59 {
		return 0, false
	}
	return hour*60 + minute, true
}
