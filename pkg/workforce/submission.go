package workforce

import (
	"fmt"
	"time"

	"github.com/dmitrymomot/crewnotify/pkg/hours"
)

// SubmissionStatus is the lifecycle state of a timesheet submission.
type SubmissionStatus string

const (
	StatusDraft     SubmissionStatus = "Draft"
	StatusSubmitted SubmissionStatus = "Submitted"
	StatusApproved  SubmissionStatus = "Approved"
	StatusRejected  SubmissionStatus = "Rejected"
	StatusFlagged   SubmissionStatus = "Flagged"
	StatusLocked    SubmissionStatus = "Locked"
)

// Comment is a note attached to a submission.
type Comment struct {
	Author    string    `json:"author" bson:"author"`
	Text      string    `json:"text" bson:"text"`
	System    bool      `json:"system,omitempty" bson:"system,omitempty"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
}

// Employee is one worked shift on a submission with its derived hours.
type Employee struct {
	Name          string  `json:"name" bson:"name"`
	StartTime     string  `json:"startTime" bson:"startTime"`
	EndTime       string  `json:"endTime" bson:"endTime"`
	IsShiftRate   bool    `json:"isShiftRate" bson:"isShiftRate"`
	TotalHours    float64 `json:"totalHours" bson:"totalHours"`
	RegularHours  float64 `json:"regularHours" bson:"regularHours"`
	OvertimeHours float64 `json:"overtimeHours" bson:"overtimeHours"`
	ShiftHours    float64 `json:"shiftHours" bson:"shiftHours"`
}

// Shift returns the calculator input for this entry on the given day.
func (e Employee) Shift(date time.Time) hours.Shift {
	return hours.Shift{Start: e.StartTime, End: e.EndTime, ShiftRate: e.IsShiftRate, Date: date}
}

// Breakdown returns the stored derived hours.
func (e Employee) Breakdown() hours.Breakdown {
	return hours.Breakdown{
		Total:    e.TotalHours,
		Regular:  e.RegularHours,
		Overtime: e.OvertimeHours,
		Shift:    e.ShiftHours,
	}
}

// WithBreakdown returns a copy of e carrying b as its derived hours.
func (e Employee) WithBreakdown(b hours.Breakdown) Employee {
	e.TotalHours = b.Total
	e.RegularHours = b.Regular
	e.OvertimeHours = b.Overtime
	e.ShiftHours = b.Shift
	return e
}

// Submission is a foreman's timesheet for one job and day.
type Submission struct {
	ID          string           `json:"id" bson:"_id"`
	JobID       string           `json:"jobId" bson:"jobId"`
	JobName     string           `json:"jobName,omitempty" bson:"jobName,omitempty"`
	Foreman     string           `json:"foreman" bson:"foreman"`
	ForemanID   string           `json:"foremanId" bson:"foremanId"`
	Date        time.Time        `json:"date" bson:"date"`
	Employees   []Employee       `json:"employees" bson:"employees"`
	Status      SubmissionStatus `json:"status" bson:"status"`
	SubmittedAt *time.Time       `json:"submittedAt,omitempty" bson:"submittedAt,omitempty"`
	RemindedAt  *time.Time       `json:"remindedAt,omitempty" bson:"remindedAt,omitempty"`
	Comments    []Comment        `json:"comments,omitempty" bson:"comments,omitempty"`
	CreatedAt   time.Time        `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt" bson:"updatedAt"`
}

// WorkDate is the calendar day used for hour calculation. It falls back to
// the creation time when no explicit date was recorded.
func (s Submission) WorkDate() time.Time {
	if !s.Date.IsZero() {
		return s.Date
	}
	return s.CreatedAt
}

// Validate checks the references and shift times required before hours can
// be calculated. The returned error wraps ErrMissingReference or
// ErrInvalidShiftTime.
func (s Submission) Validate() error {
	switch {
	case s.JobID == "":
		return fmt.Errorf("%w: job", ErrMissingReference)
	case s.Foreman == "" && s.ForemanID == "":
		return fmt.Errorf("%w: foreman", ErrMissingReference)
	}
	for i, e := range s.Employees {
		if _, err := hours.ParseClock(e.StartTime); err != nil {
			return fmt.Errorf("%w: employee %d start %q", ErrInvalidShiftTime, i, e.StartTime)
		}
		if _, err := hours.ParseClock(e.EndTime); err != nil {
			return fmt.Errorf("%w: employee %d end %q", ErrInvalidShiftTime, i, e.EndTime)
		}
	}
	return nil
}

// ShiftsChanged reports whether the shift inputs differ between two versions
// of the employee list. Derived hour fields are ignored.
func ShiftsChanged(before, after []Employee) bool {
	if len(before) != len(after) {
		return true
	}
	for i := range before {
		b, a := before[i], after[i]
		if b.Name != a.Name || b.StartTime != a.StartTime || b.EndTime != a.EndTime || b.IsShiftRate != a.IsShiftRate {
			return true
		}
	}
	return false
}

// ReminderDue reports whether a draft submission has waited longer than
// after and has not been reminded yet.
func (s Submission) ReminderDue(now time.Time, after time.Duration) bool {
	if s.Status != StatusDraft || s.RemindedAt != nil {
		return false
	}
	since := s.CreatedAt
	if s.SubmittedAt != nil {
		since = *s.SubmittedAt
	}
	return !since.IsZero() && since.Add(after).Before(now)
}

// Clone returns a deep copy.
func (s Submission) Clone() Submission {
	c := s
	c.Employees = append([]Employee(nil), s.Employees...)
	c.Comments = append([]Comment(nil), s.Comments...)
	if s.SubmittedAt != nil {
		t := *s.SubmittedAt
		c.SubmittedAt = &t
	}
	if s.RemindedAt != nil {
		t := *s.RemindedAt
		c.RemindedAt = &t
	}
	return c
}
