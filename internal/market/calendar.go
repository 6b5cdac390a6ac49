package market

import (
	"time"

	"github.com/folioapp/folio/internal/models"
)

// seoulLocation is the KST zone used for KR equities and metal futures.
var seoulLocation = mustLoadLocation("Asia/Seoul", 9*60*60)

// newYorkLocation covers US equities and handles EST/EDT transitions.
var newYorkLocation = mustLoadLocation("America/New_York", -5*60*60)

func mustLoadLocation(name string, offsetSeconds int) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		// Fixed-offset fallback if tzdata is unavailable (e.g., minimal container)
		return time.FixedZone(name, offsetSeconds)
	}
	return loc
}

// session describes one market's daily trading window in its local zone.
type session struct {
	loc      *time.Location
	openMin  int // minutes from local midnight
	closeMin int
}

var sessions = map[models.MarketClass]session{
	models.MarketKRKospi:      {seoulLocation, 9 * 60, 15*60 + 30},   // 09:00–15:30 KST
	models.MarketKRKosdaq:     {seoulLocation, 9 * 60, 15*60 + 30},   // 09:00–15:30 KST
	models.MarketMetalFutures: {seoulLocation, 9 * 60, 15*60 + 45},   // 09:00–15:45 KST
	models.MarketUSEquity:     {newYorkLocation, 9*60 + 30, 16 * 60}, // 09:30–16:00 ET
}

// Calendar answers session-state questions for each market class. It is
// pure time arithmetic with no failure mode. Exchange holidays are not
// modelled; only weekends are skipped.
type Calendar struct{}

// NewCalendar creates a market calendar.
func NewCalendar() *Calendar {
	return &Calendar{}
}

// IsClosed reports whether the class's market is closed at the given
// wall-clock instant.
func (c *Calendar) IsClosed(class models.MarketClass, now time.Time) bool {
	s := sessionFor(class)
	local := now.In(s.loc)
	if wd := local.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return true
	}
	minute := local.Hour()*60 + local.Minute()
	return minute < s.openMin || minute > s.closeMin
}

// LastCompletedSession returns the most recent trading date whose
// session has fully closed relative to now, as local midnight in the
// market's zone. It always produces a usable date: at worst it walks
// back a handful of days.
func (c *Calendar) LastCompletedSession(class models.MarketClass, now time.Time) time.Time {
	s := sessionFor(class)
	local := now.In(s.loc)
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.loc)

	// Today only counts once its session has closed.
	minute := local.Hour()*60 + local.Minute()
	if isWeekend(day) || minute <= s.closeMin {
		day = day.AddDate(0, 0, -1)
	}
	for isWeekend(day) {
		day = day.AddDate(0, 0, -1)
	}
	return day
}

// PreviousSession returns the trading date one session before the given
// date, skipping weekends. Used by the resolver to step past a bar that
// turns out to belong to the current session.
func (c *Calendar) PreviousSession(class models.MarketClass, date time.Time) time.Time {
	s := sessionFor(class)
	local := date.In(s.loc)
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.loc)
	day = day.AddDate(0, 0, -1)
	for isWeekend(day) {
		day = day.AddDate(0, 0, -1)
	}
	return day
}

// SameSessionDay reports whether two instants fall on the same trading
// date in the class's local zone.
func (c *Calendar) SameSessionDay(class models.MarketClass, a, b time.Time) bool {
	loc := sessionFor(class).loc
	al, bl := a.In(loc), b.In(loc)
	return al.Year() == bl.Year() && al.YearDay() == bl.YearDay()
}

func sessionFor(class models.MarketClass) session {
	if s, ok := sessions[class]; ok {
		return s
	}
	return sessions[models.MarketUSEquity]
}

func isWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}
