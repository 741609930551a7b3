package attendance

import (
	"fmt"
	"time"
)

// AttendanceRecord is one clock-in/clock-out pair. It is created on clock-in
// and mutated once on clock-out.
type AttendanceRecord struct {
	ID          string
	EmployeeID  string
	Date        time.Time // business-local calendar date
	CheckIn     *time.Time
	CheckOut    *time.Time
	WorkedHours *float64 // source-provided, overrides the computed value
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsComplete reports whether both stamps are present.
func (r AttendanceRecord) IsComplete() bool {
	return r.CheckIn != nil && r.CheckOut != nil
}

// RawAttendance is a row from the attendance feed, timestamps still in
// their stored string form.
type RawAttendance struct {
	ID          string   `json:"id"`
	EmployeeID  string   `json:"employee_id"`
	Date        string   `json:"date"`
	CheckIn     *string  `json:"check_in,omitempty"`
	CheckOut    *string  `json:"check_out,omitempty"`
	WorkedHours *float64 `json:"worked_hours,omitempty"`
}

// TimeOfDay is a wall-clock time without a date.
type TimeOfDay struct {
	Hour   int
	Minute int
}

func NewTimeOfDay(hour, minute int) TimeOfDay {
	return TimeOfDay{Hour: hour, Minute: minute}
}

// ParseTimeOfDay accepts "15:04" or "15:04:05".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
		}
	}
	return TimeOfDay{}, fmt.Errorf("invalid time of day %q", s)
}

func (t TimeOfDay) Minutes() int {
	return t.Hour*60 + t.Minute
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// On anchors t to the calendar date of day, in day's location.
func (t TimeOfDay) On(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, t.Hour, t.Minute, 0, 0, day.Location())
}

// MealWindow is the expected break-out/break-in pair within a shift.
type MealWindow struct {
	Out TimeOfDay
	In  TimeOfDay
}

// ShiftWindow is the expected workday for an employee on a date.
type ShiftWindow struct {
	Start                TimeOfDay
	End                  TimeOfDay
	GraceLateInMinutes   int
	GraceEarlyOutMinutes int
	MealWindow           *MealWindow
}

// Bounds anchors the shift on day. A shift whose end is not after its start
// ends on the following day.
func (s ShiftWindow) Bounds(day time.Time) (start, end time.Time) {
	start = s.Start.On(day)
	end = s.End.On(day)
	if s.End.Minutes() <= s.Start.Minutes() {
		end = end.AddDate(0, 0, 1)
	}
	return start, end
}

// ExpectedHours is the scheduled length of the shift.
func (s ShiftWindow) ExpectedHours() float64 {
	minutes := s.End.Minutes() - s.Start.Minutes()
	if minutes <= 0 {
		minutes += 24 * 60
	}
	return float64(minutes) / 60
}

// ResolvedShift is a ShiftWindow plus whether it came from the roster.
type ResolvedShift struct {
	ShiftWindow
	Date     time.Time
	Resolved bool
}

type Status string

const (
	StatusOnTime    Status = "OnTime"
	StatusLate      Status = "Late"
	StatusEarlyOut  Status = "EarlyOut"
	StatusMissing   Status = "Missing"
	StatusAnomalous Status = "Anomalous"
)

// BreakClassification describes an intermediate out/in pair on a day with
// more than one punch pair.
type BreakClassification struct {
	OutAt             *time.Time
	InAt              *time.Time
	EarlyOutMinutes   int
	LateReturnMinutes int
	Status            Status
}

// ClassifiedAttendance is derived on read and never stored.
type ClassifiedAttendance struct {
	RecordID      string
	EmployeeID    string
	Date          time.Time
	CheckIn       *time.Time
	CheckOut      *time.Time
	LateMinutes   int
	EarlyMinutes  int
	OvertimeHours float64
	WorkedHours   float64
	Status        Status
	Breaks        []BreakClassification
	Shift         ResolvedShift
}

// IsComplete mirrors AttendanceRecord.IsComplete for the bounding pair.
func (c ClassifiedAttendance) IsComplete() bool {
	return c.CheckIn != nil && c.CheckOut != nil
}

// DateRange is an inclusive calendar range.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Days returns every calendar date in the range.
func (r DateRange) Days() []time.Time {
	var days []time.Time
	for d := r.Start; !d.After(r.End); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// WindowAggregate summarizes classifications over a date range.
type WindowAggregate struct {
	TotalRecords     int
	CompleteRecords  int
	TotalHours       float64
	RatePercent      float64
	ExpectedHours    float64
	HoursRatePercent float64
	DateRange        DateRange
}
