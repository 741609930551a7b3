package attendance

import (
	"strconv"
	"time"

	"github.com/cmlabs-hris/hris-workflow-go/internal/pkg/validator"
)

// ========================================
// REQUEST DTOs
// ========================================

// MaxRangeDays bounds a single classification query.
const MaxRangeDays = 366

type AttendanceRangeFilter struct {
	EmployeeID string `json:"employee_id"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
}

func (f *AttendanceRangeFilter) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(f.EmployeeID) {
		errs = append(errs, validator.ValidationError{
			Field:   "employee_id",
			Message: "employee_id is required",
		})
	}

	start, startOK := validator.IsValidDate(f.StartDate)
	if !startOK {
		errs = append(errs, validator.ValidationError{
			Field:   "start_date",
			Message: "start_date must be in YYYY-MM-DD format",
		})
	}

	end, endOK := validator.IsValidDate(f.EndDate)
	if !endOK {
		errs = append(errs, validator.ValidationError{
			Field:   "end_date",
			Message: "end_date must be in YYYY-MM-DD format",
		})
	}

	if startOK && endOK {
		if end.Before(start) {
			errs = append(errs, validator.ValidationError{
				Field:   "end_date",
				Message: "end_date must not be before start_date",
			})
		} else if int(end.Sub(start).Hours()/24)+1 > MaxRangeDays {
			errs = append(errs, validator.ValidationError{
				Field:   "end_date",
				Message: "date range must not exceed " + strconv.Itoa(MaxRangeDays) + " days",
			})
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

type ClockRequest struct {
	EmployeeID string `json:"employee_id"`
}

func (r *ClockRequest) Validate() error {
	if validator.IsEmpty(r.EmployeeID) {
		return validator.ValidationErrors{{
			Field:   "employee_id",
			Message: "employee_id is required",
		}}
	}
	return nil
}

// ========================================
// RESPONSE DTOs
// ========================================

type AttendanceResponse struct {
	ID          string   `json:"id"`
	EmployeeID  string   `json:"employee_id"`
	Date        string   `json:"date"`
	CheckIn     *string  `json:"check_in,omitempty"`
	CheckOut    *string  `json:"check_out,omitempty"`
	WorkedHours *float64 `json:"worked_hours,omitempty"`
}

type ShiftResponse struct {
	Start                string  `json:"start"`
	End                  string  `json:"end"`
	GraceLateInMinutes   int     `json:"grace_late_in_minutes"`
	GraceEarlyOutMinutes int     `json:"grace_early_out_minutes"`
	MealOut              *string `json:"meal_out,omitempty"`
	MealIn               *string `json:"meal_in,omitempty"`
	Resolved             bool    `json:"resolved"`
}

type BreakResponse struct {
	OutAt             *string `json:"out_at,omitempty"`
	InAt              *string `json:"in_at,omitempty"`
	EarlyOutMinutes   int     `json:"early_out_minutes"`
	LateReturnMinutes int     `json:"late_return_minutes"`
	Status            string  `json:"status"`
}

type ClassifiedAttendanceResponse struct {
	RecordID      string          `json:"record_id"`
	EmployeeID    string          `json:"employee_id"`
	Date          string          `json:"date"`
	CheckIn       *string         `json:"check_in,omitempty"`
	CheckOut      *string         `json:"check_out,omitempty"`
	LateMinutes   int             `json:"late_minutes"`
	EarlyMinutes  int             `json:"early_minutes"`
	OvertimeHours float64         `json:"overtime_hours"`
	WorkedHours   float64         `json:"worked_hours"`
	Status        string          `json:"status"`
	Breaks        []BreakResponse `json:"breaks,omitempty"`
	Shift         ShiftResponse   `json:"shift"`
}

type DateRangeResponse struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

type WindowAggregateResponse struct {
	TotalRecords     int               `json:"total_records"`
	CompleteRecords  int               `json:"complete_records"`
	TotalHours       float64           `json:"total_hours"`
	RatePercent      float64           `json:"rate_percent"`
	ExpectedHours    float64           `json:"expected_hours"`
	HoursRatePercent float64           `json:"hours_rate_percent"`
	DateRange        DateRangeResponse `json:"date_range"`
}

type AttendanceSummaryResponse struct {
	EmployeeID string                         `json:"employee_id"`
	Records    []ClassifiedAttendanceResponse `json:"records"`
	Aggregate  WindowAggregateResponse        `json:"aggregate"`
}

// FormatTimestamp renders an instant for API output.
func FormatTimestamp(t *time.Time, loc *time.Location) *string {
	if t == nil {
		return nil
	}
	s := t.In(loc).Format(time.RFC3339)
	return &s
}
