package scheduler

import (
	"fmt"
	"time"
)

// Schedule determines when a job runs next.
type Schedule interface {
	// Next returns the first run time strictly after from.
	Next(from time.Time) time.Time
	String() string
}

type intervalSchedule struct {
	every time.Duration
}

func (s intervalSchedule) Next(from time.Time) time.Time {
	return from.Add(s.every)
}

func (s intervalSchedule) String() string {
	return fmt.Sprintf("every %v", s.every)
}

type dailySchedule struct {
	hour     int
	minute   int
	loc      *time.Location
	weekdays bool
}

func (s dailySchedule) Next(from time.Time) time.Time {
	local := from.In(s.loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), s.hour, s.minute, 0, 0, s.loc)
	if !next.After(local) {
		next = next.AddDate(0, 0, 1)
	}
	if s.weekdays {
		for next.Weekday() == time.Saturday || next.Weekday() == time.Sunday {
			next = next.AddDate(0, 0, 1)
		}
	}
	return next
}

func (s dailySchedule) String() string {
	days := "daily"
	if s.weekdays {
		days = "weekdays"
	}
	return fmt.Sprintf("%s at %02d:%02d %s", days, s.hour, s.minute, s.loc)
}

// Every runs a job at a fixed interval.
func Every(d time.Duration) Schedule {
	if d <= 0 {
		d = time.Minute
	}
	return intervalSchedule{every: d}
}

// DailyAt runs a job every day at hour:minute in loc. A nil loc means UTC.
func DailyAt(hour, minute int, loc *time.Location) Schedule {
	return dailySchedule{hour: hour, minute: minute, loc: orUTC(loc)}
}

// WeekdaysAt runs a job Monday to Friday at hour:minute in loc.
func WeekdaysAt(hour, minute int, loc *time.Location) Schedule {
	return dailySchedule{hour: hour, minute: minute, loc: orUTC(loc), weekdays: true}
}

func orUTC(loc *time.Location) *time.Location {
	if loc == nil {
		return time.UTC
	}
	return loc
}
