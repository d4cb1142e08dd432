package server

import (
	"testing"
	"time"
)

// monday returns a time on Monday 2026-03-02 at the given clock position.
func monday(hour, minute int) time.Time {
	return time.Date(2026, 3, 2, hour, minute, 0, 0, time.UTC)
}

func dayTimes(openTime, closeTime string) WeeklyHours {
	return WeeklyHours{
		"monday": {Open: true, OpenTime: openTime, CloseTime: closeTime},
	}
}

func TestWeeklyHours_OpenAtSameDayWindow(t *testing.T) {
	hours := dayTimes("09:00", "22:00")

	cases := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"before open", monday(8, 59), false},
		{"at open", monday(9, 0), true},
		{"midday", monday(14, 30), true},
		{"last open minute", monday(21, 59), true},
		{"at close", monday(22, 0), false},
		{"after close", monday(23, 15), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := hours.OpenAt(tc.at); got != tc.want {
				t.Fatalf("OpenAt(%s) = %v, want %v", tc.at.Format("15:04"), got, tc.want)
			}
		})
	}
}

func TestWeeklyHours_OpenAtOvernightWindow(t *testing.T) {
	hours := dayTimes("22:00", "02:00")

	cases := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"late evening", monday(23, 0), true},
		{"past midnight", monday(1, 0), true},
		{"at open", monday(22, 0), true},
		{"after close", monday(3, 0), false},
		{"afternoon", monday(21, 0), false},
		{"at close", monday(2, 0), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := hours.OpenAt(tc.at); got != tc.want {
				t.Fatalf("OpenAt(%s) = %v, want %v", tc.at.Format("15:04"), got, tc.want)
			}
		})
	}
}

func TestWeeklyHours_OpenAtClosedDayAndMissingFields(t *testing.T) {
	closedDay := WeeklyHours{"monday": {Open: false, OpenTime: "09:00", CloseTime: "22:00"}}
	if closedDay.OpenAt(monday(12, 0)) {
		t.Fatal("closed day reported open")
	}

	var absent WeeklyHours
	if absent.OpenAt(monday(12, 0)) {
		t.Fatal("nil hours reported open")
	}

	noDay := WeeklyHours{"tuesday": {Open: true, OpenTime: "09:00", CloseTime: "22:00"}}
	if noDay.OpenAt(monday(12, 0)) {
		t.Fatal("missing weekday entry reported open")
	}

	// Without parseable times the raw flag wins.
	rawFlag := WeeklyHours{"monday": {Open: true}}
	if !rawFlag.OpenAt(monday(3, 0)) {
		t.Fatal("entry without times should fall back to the open flag")
	}

	malformed := WeeklyHours{"monday": {Open: true, OpenTime: "9am", CloseTime: "22:00"}}
	if !malformed.OpenAt(monday(3, 0)) {
		t.Fatal("unparseable times should fall back to the open flag")
	}
}

func TestWeeklyHours_BoundaryWithin(t *testing.T) {
	hours := dayTimes("11:00", "23:00")

	cases := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"one minute before open", monday(10, 59), true},
		{"at open minute", monday(11, 0), true},
		{"one minute before close", monday(22, 59), true},
		{"at close minute", monday(23, 0), true},
		{"mid-window", monday(15, 30), false},
		{"well before open", monday(9, 0), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := hours.BoundaryWithin(tc.at); got != tc.want {
				t.Fatalf("BoundaryWithin(%s) = %v, want %v", tc.at.Format("15:04"), got, tc.want)
			}
		})
	}

	closedDay := WeeklyHours{"monday": {Open: false, OpenTime: "11:00", CloseTime: "23:00"}}
	if closedDay.BoundaryWithin(monday(11, 0)) {
		t.Fatal("closed day should never report a boundary")
	}
	noTimes := WeeklyHours{"monday": {Open: true}}
	if noTimes.BoundaryWithin(monday(11, 0)) {
		t.Fatal("entry without times should never report a boundary")
	}
}

func TestParseClock(t *testing.T) {
	cases := []struct {
		in      string
		minutes int
		ok      bool
	}{
		{"00:00", 0, true},
		{"09:30", 570, true},
		{"23:59", 1439, true},
		{"24:00", 0, false},
		{"12:60", 0, false},
		{"noon", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, ok := parseClock(tc.in)
		if ok != tc.ok || (ok && got != tc.minutes) {
			t.Fatalf("parseClock(%q) = (%d, %v), want (%d, %v)", tc.in, got, ok, tc.minutes, tc.ok)
		}
	}
}
