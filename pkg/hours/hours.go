package hours

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// BreakMinutes is the unpaid break deducted from every shift.
	BreakMinutes = 30

	// RegularWindowStart and RegularWindowEnd bound the weekday window
	// counted as regular time, in minutes after midnight (06:00 to 14:30).
	RegularWindowStart = 6 * 60
	RegularWindowEnd   = 14*60 + 30

	minutesPerDay = 24 * 60
)

// Shift is the raw input for one worked entry.
type Shift struct {
	Start     string    // local clock time, HH:MM
	End       string    // local clock time, HH:MM; earlier than Start means next day
	ShiftRate bool      // all hours are paid at the shift rate
	Date      time.Time // calendar day the shift starts on
}

// Breakdown is the derived split of worked hours.
type Breakdown struct {
	Total    float64 `json:"totalHours" bson:"totalHours"`
	Regular  float64 `json:"regularHours" bson:"regularHours"`
	Overtime float64 `json:"overtimeHours" bson:"overtimeHours"`
	Shift    float64 `json:"shiftHours" bson:"shiftHours"`
}

// IsZero reports whether no time was worked.
func (b Breakdown) IsZero() bool {
	return b == Breakdown{}
}

// Calculate splits a shift into total, regular, overtime and shift-rate hours.
//
// The break is deducted from the total. On weekdays it is deducted again from
// the overlap with the regular window before that overlap counts as regular
// time, and the remainder of the total is overtime. Weekend shifts are all
// overtime and shift-rate entries are all shift hours.
func Calculate(s Shift) (Breakdown, error) {
	start, err := ParseClock(s.Start)
	if err != nil {
		return Breakdown{}, err
	}
	end, err := ParseClock(s.End)
	if err != nil {
		return Breakdown{}, err
	}
	if end < start {
		end += minutesPerDay
	}

	total := paidHours(end - start)
	if total == 0 {
		return Breakdown{}, nil
	}

	if s.ShiftRate {
		return Breakdown{Total: total, Shift: total}, nil
	}

	if IsWeekend(s.Date) {
		return Breakdown{Total: total, Overtime: total}, nil
	}

	regular := paidHours(overlap(start, end, RegularWindowStart, RegularWindowEnd))
	return Breakdown{
		Total:    total,
		Regular:  regular,
		Overtime: max(0, total-regular),
	}, nil
}

// IsWeekend reports whether the date falls on Saturday or Sunday.
func IsWeekend(d time.Time) bool {
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// ParseClock converts an HH:MM clock string to minutes after midnight.
func ParseClock(v string) (int, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(v), ":")
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, v)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, v)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 || len(mm) != 2 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, v)
	}
	return h*60 + m, nil
}

func paidHours(minutes int) float64 {
	return max(0, float64(minutes-BreakMinutes)/60)
}

func overlap(start, end, windowStart, windowEnd int) int {
	return max(0, min(end, windowEnd)-max(start, windowStart))
}
